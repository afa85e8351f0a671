package utils

import "nodove/auth/internal/domain/models"

// GetValidRoles returns the known roles in the form ozzo-validation's In rule expects.
func GetValidRoles() []interface{} {
	return []interface{}{models.RoleUser, models.RoleAdmin}
}
