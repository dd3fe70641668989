package models

// Роли пользователей
const (
	RoleClient     = "CLIENT"
	RoleFreelancer = "FREELANCER"
	RoleAdmin      = "ADMIN"
)

// Статусы заказов
const (
	JobStatusOpen       = "OPEN"
	JobStatusInProgress = "IN_PROGRESS"
	JobStatusCancelled  = "CANCELLED"
	JobStatusCompleted  = "COMPLETED"
)

// Статусы предложений
const (
	ProposalStatusPending  = "PENDING"
	ProposalStatusAccepted = "ACCEPTED"
	ProposalStatusRejected = "REJECTED"
)

// Статусы контрактов
const (
	ContractStatusActive    = "ACTIVE"
	ContractStatusCompleted = "COMPLETED"
	ContractStatusCancelled = "CANCELLED"
)

// Типы платежей
const (
	PaymentTypeEscrow  = "ESCROW"
	PaymentTypeRelease = "RELEASE"
	PaymentTypeRefund  = "REFUND"
)

// Статусы платежей
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusRefunded  = "REFUNDED"
)

// Статусы покупки connects
const (
	ConnectTxStatusPending   = "PENDING"
	ConnectTxStatusCompleted = "COMPLETED"
)

// ConnectSourcePurchase источник начисления connects.
const ConnectSourcePurchase = "PURCHASE"

// ValidJobStatuses список валидных статусов заказов
var ValidJobStatuses = map[string]struct{}{
	JobStatusOpen:       {},
	JobStatusInProgress: {},
	JobStatusCancelled:  {},
	JobStatusCompleted:  {},
}

// SelfServiceRoles роли, доступные при регистрации.
var SelfServiceRoles = map[string]struct{}{
	RoleClient:     {},
	RoleFreelancer: {},
}
