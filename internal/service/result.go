package service

// Outcome — исход операции, не являющийся ошибкой.
type Outcome int

const (
	// OutcomeDone — операция выполнена.
	OutcomeDone Outcome = iota
	// OutcomeConflict — ресурс уже существует (Keycloak ответил 409 или найден при проверке).
	OutcomeConflict
)

// Result — результат изменяющей операции.
// Конфликт возвращается как значение, а не как ошибка.
type Result struct {
	Outcome Outcome
	// Message — сообщение для клиента API
	Message string
	// Step — шаг провизионинга, на котором обнаружен конфликт (только для организаций)
	Step string
}

// IsConflict сообщает, что ресурс уже существовал.
func (r Result) IsConflict() bool {
	return r.Outcome == OutcomeConflict
}

func done(message string) Result {
	return Result{Outcome: OutcomeDone, Message: message}
}

func conflict(message, step string) Result {
	return Result{Outcome: OutcomeConflict, Message: message, Step: step}
}
