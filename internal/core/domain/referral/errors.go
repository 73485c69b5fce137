// internal/core/domain/referral/errors.go
package referral

import "fmt"

// ReferralError типизированная ошибка реферальной системы.
// Code стабилен для программной обработки, Message — для пользователя.
type ReferralError struct {
	Code    string
	Message string
}

func (e *ReferralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Ошибки валидации и состояния. Все возвращаются вызывающему,
// частичных мутаций при ошибке не бывает.
var (
	ErrSelfReferral = &ReferralError{
		Code:    "self_referral",
		Message: "нельзя пригласить самого себя",
	}
	ErrUnknownReferrer = &ReferralError{
		Code:    "unknown_referrer",
		Message: "реферер не найден",
	}
	ErrUnknownUser = &ReferralError{
		Code:    "unknown_user",
		Message: "пользователь не найден",
	}
	ErrAlreadyInvited = &ReferralError{
		Code:    "already_invited",
		Message: "пользователь уже приглашён другим реферером",
	}
	ErrBonusUnavailable = &ReferralError{
		Code:    "bonus_unavailable",
		Message: "бонус недоступен",
	}
	ErrRequestAlreadyPending = &ReferralError{
		Code:    "request_already_pending",
		Message: "заявка на бонус уже ожидает рассмотрения",
	}
	ErrNoPendingRequest = &ReferralError{
		Code:    "no_pending_request",
		Message: "нет заявки, ожидающей рассмотрения",
	}
)

// PersistenceError ошибка сохранения состояния. Мутация в памяти уже
// применена, повторная запись произойдёт при следующем изменении.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ошибка сохранения (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
