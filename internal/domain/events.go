package domain

import "github.com/google/uuid"

// Routing keys of the events this service emits.
const (
	TopicNotificationCustomerCreated = "notification.customer.created"
	TopicNotificationCustomerDeleted = "notification.customer.deleted"
	TopicAccountCustomerCreated      = "account.customer.created"
	TopicAccountCustomerDeleted      = "account.customer.deleted"
	TopicShoppingCartCustomerCreated = "shopping-cart.customer.created"
	TopicShoppingCartCustomerDeleted = "shopping-cart.customer.deleted"
	TopicActivityCustomerLog         = "activity.customer.log"
)

// Orchestration commands this service listens to.
const (
	TopicSystemShutdown = "system.shutdown"
	TopicSystemRestart  = "system.restart"
	TopicSystemStart    = "system.start"
	TopicPersonShutdown = "person.shutdown"
	TopicPersonRestart  = "person.restart"
	TopicPersonStart    = "person.start"
)

// SendMailEvent asks the notification service to send a templated mail.
type SendMailEvent struct {
	Email        string            `json:"email"`
	Placeholders map[string]string `json:"placeholders"`
}

// CreateAccountDTO asks the account service to open the default account.
type CreateAccountDTO struct {
	Balance          float64   `json:"balance"`
	Category         string    `json:"category"`
	RateOfInterest   float64   `json:"rateOfInterest"`
	Overdraft        float64   `json:"overdraft"`
	WithdrawalLimit  int       `json:"withdrawalLimit"`
	UserID           uuid.UUID `json:"userId"`
	TransactionLimit int       `json:"transactionLimit"`
	Username         string    `json:"username"`
}

type DeleteAccountDTO struct {
	ID       uuid.UUID `json:"id"`
	Version  int       `json:"version"`
	Username string    `json:"username"`
}

type ShoppingCartDTO struct {
	CustomerID       uuid.UUID `json:"customerId"`
	CustomerUsername string    `json:"customerUsername,omitempty"`
	Token            string    `json:"token,omitempty"`
}
