// Package errs содержит общие sentinel-ошибки ядра магазина.
// Каждое условие отказа имеет свою стабильную ошибку, чтобы вызывающая сторона
// могла различать их через errors.Is и сама решать, что показать пользователю.
package errs

import "errors"

var (
	// ErrValidation: некорректный идентификатор или событие, состояние диалога сохраняется.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyRedeemed: пользователь уже использовал бесплатный пробный период.
	ErrAlreadyRedeemed = errors.New("free trial already redeemed")

	// ErrUnauthorized: у инициатора нет нужных привилегий.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound: заказ или запись журнала не найдены либо уже обработаны.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable: хранилище не ответило, повтор остаётся на вызывающей стороне.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrRateLimited: пользователь присылает события слишком часто.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvariantViolation: попытка нарушить инвариант, например удалить главного администратора.
	ErrInvariantViolation = errors.New("invariant violation")
)
