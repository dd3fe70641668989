package validation

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinNameLength         = 2
	MaxNameLength         = 100
	MaxJobTitleLength     = 200
	MaxJobDescriptionLen  = 10000
	MaxCategoryLength     = 100
	MaxCoverLetterLength  = 5000
	MaxSkillLength        = 50
	MaxSkillsCount        = 30
	MaxBudget             = 100000000.0
	MaxCertificationField = 200
	MaxURLLength          = 500
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateRequired проверяет, что строка не пустая, и ограничивает её длину.
func ValidateRequired(fieldName, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s обязателен", fieldName)
	}
	return ValidateLength(fieldName, value, 0, max)
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return fmt.Errorf("некорректный формат email")
	}
	if len(local) == 0 || len(local) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domain) == 0 || len(domain) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}
	if !emailLocalRegex.MatchString(local) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domain) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateName проверяет отображаемое имя пользователя.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("имя обязательно")
	}
	return ValidateLength("имя", strings.TrimSpace(name), MinNameLength, MaxNameLength)
}

// ValidateBudget проверяет бюджет или сумму.
func ValidateBudget(fieldName string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%s должен быть конечным числом", fieldName)
	}
	if value <= 0 {
		return fmt.Errorf("%s должен быть больше нуля", fieldName)
	}
	if value > MaxBudget {
		return fmt.Errorf("%s не может превышать %.0f", fieldName, MaxBudget)
	}
	return nil
}

// ValidateSkills проверяет список навыков: непустой, без пустых и слишком длинных элементов.
func ValidateSkills(skills []string) error {
	if len(skills) == 0 {
		return fmt.Errorf("нужно указать хотя бы один навык")
	}
	if len(skills) > MaxSkillsCount {
		return fmt.Errorf("можно указать не более %d навыков", MaxSkillsCount)
	}
	for _, skill := range skills {
		if strings.TrimSpace(skill) == "" {
			return fmt.Errorf("навык не может быть пустым")
		}
		if utf8.RuneCountInString(skill) > MaxSkillLength {
			return fmt.Errorf("навык должен быть не более %d символов", MaxSkillLength)
		}
	}
	return nil
}

// NormalizeSkills обрезает пробелы и убирает дубликаты, сохраняя порядок.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ValidateURL проверяет необязательную ссылку.
func ValidateURL(fieldName string, link *string) error {
	if link == nil || *link == "" {
		return nil
	}
	if len(*link) > MaxURLLength {
		return fmt.Errorf("%s должна быть не более %d символов", fieldName, MaxURLLength)
	}
	parsed, err := url.ParseRequestURI(*link)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%s должна быть корректной http(s) ссылкой", fieldName)
	}
	return nil
}
