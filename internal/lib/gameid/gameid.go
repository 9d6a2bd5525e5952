// Package gameid проверяет игровые идентификаторы, которые присылают пользователи.
package gameid

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator"
)

// MinDigits минимальное количество цифр в идентификаторе.
const MinDigits = 8

// Tag имя правила для go-playground/validator.
const Tag = "gameid"

// IsValid отбрасывает все нецифровые символы и принимает строку,
// если осталось не меньше MinDigits цифр. Разделители вроде пробелов и дефисов не считаются ошибкой.
func IsValid(text string) bool {
	return len(Digits(text)) >= MinDigits
}

// Digits возвращает только цифры из строки.
func Digits(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize убирает пробельные символы по краям, именно в таком виде идентификатор сохраняется.
func Normalize(text string) string {
	return strings.TrimFunc(text, unicode.IsSpace)
}

// Register добавляет правило Tag в валидатор.
func Register(v *validator.Validate) error {
	return v.RegisterValidation(Tag, func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		return IsValid(fl.Field().String())
	})
}
