package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"customer-analytics-api/internal/models"
)

const (
	MinAge       = 0
	MaxAge       = 150
	MaxVisitDays = 31
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func ValidateCustomer(c models.Customer) error {
	if err := ValidateUID(c.UID, "uid"); err != nil {
		return err
	}

	if err := ValidateRegion(c.RegionGroup, "region_group"); err != nil {
		return err
	}

	if strings.TrimSpace(c.RegionCity) == "" {
		return &ValidationError{
			Field:   "region_city",
			Message: "is required",
		}
	}

	if err := ValidateAgeGroup(string(c.AgeGroup), "age_group"); err != nil {
		return err
	}

	if c.Age < MinAge || c.Age > MaxAge {
		return &ValidationError{
			Field:   "age",
			Message: fmt.Sprintf("must be between %d and %d", MinAge, MaxAge),
		}
	}

	if c.VisitDays < 0 || c.VisitDays > MaxVisitDays {
		return &ValidationError{
			Field:   "visit_days",
			Message: fmt.Sprintf("must be between 0 and %d", MaxVisitDays),
		}
	}

	if err := validateAmount(c.TotalDurationMin, "total_duration_min"); err != nil {
		return err
	}

	if c.AvgDurationMin != nil {
		if err := validateAmount(*c.AvgDurationMin, "avg_duration_min"); err != nil {
			return err
		}
	}

	return validateAmount(c.TotalPayment, "total_payment")
}

func ValidateRetention(r models.Retention) error {
	return ValidateUID(r.UID, "uid")
}

func ValidateUID(uid int64, fieldName string) error {
	if uid <= 0 {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a positive integer",
		}
	}
	return nil
}

// ParseUID parses a path or query uid.
func ParseUID(raw, fieldName string) (int64, error) {
	raw = SanitizeString(raw)
	if raw == "" {
		return 0, &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &ValidationError{
			Field:   fieldName,
			Message: "must be numeric",
		}
	}

	return uid, ValidateUID(uid, fieldName)
}

func ValidateRegion(region, fieldName string) error {
	if region == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	for _, known := range models.RegionGroups {
		if region == known {
			return nil
		}
	}

	return &ValidationError{
		Field:   fieldName,
		Message: fmt.Sprintf("unknown region %q", region),
	}
}

func ValidateAgeGroup(group, fieldName string) error {
	for _, known := range models.AgeGroups {
		if models.AgeGroup(group) == known {
			return nil
		}
	}

	return &ValidationError{
		Field:   fieldName,
		Message: fmt.Sprintf("must be one of Teens, Twenties, Thirties, Forties+ (got %q)", group),
	}
}

func validateAmount(v float64, fieldName string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a finite number",
		}
	}

	if v < 0 {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be non-negative",
		}
	}

	return nil
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// SanitizeCustomer trims and strips control characters from string fields.
func SanitizeCustomer(c *models.Customer) {
	c.RegionGroup = SanitizeString(c.RegionGroup)
	c.RegionCity = SanitizeString(c.RegionCity)
	c.AgeGroup = models.AgeGroup(SanitizeString(string(c.AgeGroup)))
}
