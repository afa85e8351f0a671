package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const secretSize = 32

func main() {
	access, err := secret()
	if err != nil {
		panic(err)
	}
	refresh, err := secret()
	if err != nil {
		panic(err)
	}

	fmt.Println("=== Token secrets ===")
	fmt.Println("")
	fmt.Println("ACCESS_SECRET:")
	fmt.Println(access)
	fmt.Println("")
	fmt.Println("REFRESH_SECRET:")
	fmt.Println(refresh)
}

func secret() (string, error) {
	b := make([]byte, secretSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
