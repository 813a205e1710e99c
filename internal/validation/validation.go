// Package validation holds the single rule table for request fields: the
// custom validators wired into gin's binding engine and the per-field
// messages the API reports. Server handlers and any future client glue
// share these definitions so the two never drift.
package validation

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/evergogreen/evergogreen/internal/domain/vhi"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// specialChars is the symbol set a strong password must draw from.
const specialChars = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?~` "

var registerOnce sync.Once

// Register installs the custom field rules on gin's binding validator.
// Safe to call from every router constructor; only the first call does work.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)

		if !ok {
			return
		}

		_ = v.RegisterValidation("notblank", notBlank)
		_ = v.RegisterValidation("trimmed_min", trimmedMin)
		_ = v.RegisterValidation("trimmed_max", trimmedMax)
		_ = v.RegisterValidation("username_chars", usernameChars)
		_ = v.RegisterValidation("strong_password", strongPassword)
		_ = v.RegisterValidation("ddmmyyyy", dateDDMMYYYY)
	})
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// trimmedMin / trimmedMax bound the length of the value as it will be
// stored, after surrounding whitespace is stripped, so padding can
// neither satisfy a minimum nor blow a maximum.

func trimmedMin(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())

	if err != nil {
		return false
	}

	return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
}

func trimmedMax(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())

	if err != nil {
		return false
	}

	return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) <= n
}

func usernameChars(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

func strongPassword(fl validator.FieldLevel) bool {
	var upper, lower, digit, special bool

	for _, r := range fl.Field().String() {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	return upper && lower && digit && special
}

func dateDDMMYYYY(fl validator.FieldLevel) bool {
	_, err := time.Parse(vhi.DateLayout, fl.Field().String())

	return err == nil
}

// messages maps json field name -> rule -> user-facing message. "type" is a
// pseudo-rule used for JSON type mismatches.
var messages = map[string]map[string]string{
	"name": {
		"required":    "Name is required",
		"type":        "Name must be string",
		"notblank":    "Name must not be empty",
		"trimmed_min": "Name must be between 2 and 50 characters",
		"trimmed_max": "Name must be between 2 and 50 characters",
	},
	"address": {
		"required":    "Address is required",
		"type":        "Address must be string",
		"notblank":    "Address must not be empty",
		"trimmed_min": "Address must be between 5 and 255 characters",
		"trimmed_max": "Address must be between 5 and 255 characters",
	},
	"email": {
		"required": "Email is required",
		"type":     "Email must be string",
		"notblank": "Email must not be empty",
		"email":    "Invalid email format",
		"unique":   "Email already in use",
	},
	"username": {
		"required":       "Username is required",
		"type":           "Username must be string",
		"notblank":       "Username must not be empty",
		"min":            "Username must be between 2 and 32 characters",
		"max":            "Username must be between 2 and 32 characters",
		"username_chars": "Username can contain only underscores, periods, and alphanumeric characters",
		"unique":         "Username already exists",
	},
	"password": {
		"required":        "Password is required",
		"type":            "Password must be string",
		"notblank":        "Password must not be empty",
		"min":             "Password must be between 8 and 32 characters",
		"max":             "Password must be between 8 and 32 characters",
		"strong_password": "Password must be strong (containing uppercase and lowercase letters, numbers, and special characters)",
	},
	"location": {
		"required":    "Location is required",
		"type":        "Location must be string",
		"notblank":    "Location must not be empty",
		"trimmed_min": "Location must be between 5 and 32 characters",
		"trimmed_max": "Location must be between 5 and 32 characters",
	},
	"vhi_value": {
		"required": "VHI value is required",
		"type":     "VHI value must be integer",
	},
	"date": {
		"required": "Date is required",
		"type":     "Date must be string",
		"notblank": "Date must not be empty",
		"ddmmyyyy": "Invalid date",
	},
	"vegetation_type": {
		"required": "Vegetation type is required",
		"type":     "Vegetation must be string",
		"notblank": "Vegetation must not be empty",
		"oneof":    "Vegetation type must be Forest, Grassland, Crop, or Other",
	},
}

// Message resolves the user-facing text for a violated rule on a field.
func Message(field, rule string) string {
	if byRule, ok := messages[field]; ok {
		if msg, ok := byRule[rule]; ok {
			return msg
		}
	}

	return "Invalid value"
}
