package model

import "time"

// AuditAction — тип операции в журнале аудита.
type AuditAction string

// Операции, попадающие в журнал аудита.
const (
	AuditActionLogin      AuditAction = "auth.login"
	AuditActionOrgCreate  AuditAction = "org.create"
	AuditActionOrgResume  AuditAction = "org.resume"
	AuditActionOrgDelete  AuditAction = "org.delete"
	AuditActionUserCreate AuditAction = "user.create"
	AuditActionUserEdit   AuditAction = "user.edit"
	AuditActionUserDelete AuditAction = "user.delete"
)

// AuditOutcome — результат операции.
type AuditOutcome string

const (
	AuditOutcomeSuccess  AuditOutcome = "success"
	AuditOutcomeConflict AuditOutcome = "conflict"
	AuditOutcomeFailure  AuditOutcome = "failure"
)

// AuditEvent — запись журнала аудита.
// Хранится в таблице audit_events (только добавление).
type AuditEvent struct {
	// ID — UUID записи
	ID string
	// OccurredAt — время операции
	OccurredAt time.Time
	// Action — тип операции
	Action AuditAction
	// Realm — организация, к которой относится операция
	Realm string
	// Subject — над кем выполнена операция (username) или кто входил
	Subject string
	// Outcome — результат
	Outcome AuditOutcome
	// Step — шаг провизионинга, на котором операция завершилась (для org.*)
	Step string
	// Detail — текст ошибки или сообщение результата
	Detail string
}
