package model

import "time"

// Audit actions.
const (
	ActionConfirmSign        = "CONFIRM_SIGN"
	ActionManualSign         = "MANUAL_SIGN"
	ActionSendSignEmail      = "SEND_SIGN_EMAIL"
	ActionReissueSignRequest = "REISSUE_SIGN_REQUEST"
	ActionCreatePerson       = "CREATE_PERSON"
	ActionEditPerson         = "EDIT_PERSON"
	ActionCreateCert         = "CREATE_CERT"
	ActionUpdateSettings     = "UPDATE_SETTINGS"
	ActionSetEmailPassword   = "SET_EMAIL_PASSWORD"
	ActionExportReport       = "EXPORT_REPORT"
)

// Audit entity types.
const (
	EntityCert     = "CERT"
	EntityPerson   = "PERSON"
	EntitySettings = "SETTINGS"
)

// Audit results.
const (
	ResultOK    = "OK"
	ResultError = "ERROR"
)

// AuditLogEntry records the outcome of a state-changing operation.
type AuditLogEntry struct {
	ID         int64     `json:"id" yaml:"id" db:"id"`
	TS         time.Time `json:"ts" yaml:"ts" db:"ts"`
	Actor      string    `json:"actor" yaml:"actor" db:"actor"`
	Action     string    `json:"action" yaml:"action" db:"action"`
	EntityType string    `json:"entity_type" yaml:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" yaml:"entity_id" db:"entity_id"`
	BeforeJSON *string   `json:"before_json,omitempty" yaml:"before_json,omitempty" db:"before_json"`
	AfterJSON  *string   `json:"after_json,omitempty" yaml:"after_json,omitempty" db:"after_json"`
	Result     string    `json:"result" yaml:"result" db:"result"`
	Message    string    `json:"message" yaml:"message" db:"message"`
	PrevHash   string    `json:"prev_hash" yaml:"prev_hash" db:"prev_hash"`
	ChainHash  string    `json:"chain_hash" yaml:"chain_hash" db:"chain_hash"`
}
