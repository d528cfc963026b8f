package api

import (
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Context keys set by the authentication middleware.
const (
	KeyUserID      = "user_id"
	KeyUsername    = "username"
	KeyRoles       = "roles"
	KeyPermissions = "permissions"
	KeyRequestID   = "request_id"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// GetPageable reads page, size, sortBy and sortDir.
func GetPageable(c *gin.Context) crud.Pageable {
	p := crud.Pageable{
		SortBy:  c.Query("sortBy"),
		SortDir: c.Query("sortDir"),
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("size")); err == nil {
		p.Size = v
	}
	return p.Normalize()
}

// ParseID reads a positive int64 path parameter.
func ParseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(map[string]string{name: name + " must be a positive integer"})
	}
	return id, nil
}

// WantRelations reports whether the caller asked for nested relations.
func WantRelations(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("withRelations"))
	return v
}

// BindJSON decodes the body into dst, turning binding failures into validation errors.
func BindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return bindingError(err)
	}
	return nil
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		return apperr.Validation(fields)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperr.Validation(map[string]string{typeErr.Field: typeErr.Field + " has an invalid type"})
	}
	return apperr.Validation(map[string]string{"body": "malformed request body"})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "email":
		return fe.Field() + " must be a valid email address"
	}
	return fe.Field() + " is invalid"
}

// GetUsername returns the authenticated username, or "".
func GetUsername(c *gin.Context) string {
	return c.GetString(KeyUsername)
}

// GetUserID returns the authenticated user id, or 0.
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(KeyUserID)
}
