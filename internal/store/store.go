// Package store defines the persistence interfaces for conversations,
// messages, rules, appointments, orders, calendar resources/blocks, and
// orchestrator configuration. Concrete drivers live in
// internal/store/postgres and internal/store/sqlite. Grounded on the
// teacher's store.Store facade-over-Driver shape (now deleted — see
// DESIGN.md) and plugin/chat_apps/store/db.go's raw-SQL conventions.
package store

import (
	"context"

	"github.com/vidinsight-tech/queryon/internal/model"
)

// ConversationRepo persists Conversation rows, including the embedded
// FlowState snapshot.
type ConversationRepo interface {
	Create(ctx context.Context, c *model.Conversation) error
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	GetByChannel(ctx context.Context, platform model.Platform, channelID string) (*model.Conversation, error)
	UpdateFlowState(ctx context.Context, id string, flow *model.FlowState) error
	Touch(ctx context.Context, id string) error
	ListActive(ctx context.Context, limit int) ([]*model.Conversation, error)
}

// MessageRepo persists Message rows within a Conversation.
type MessageRepo interface {
	Create(ctx context.Context, m *model.Message) error
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*model.Message, error)
	CountByConversation(ctx context.Context, conversationID string) (int, error)
}

// MessageEventRepo persists granular per-message action-log entries.
type MessageEventRepo interface {
	Create(ctx context.Context, e *model.MessageEvent) error
	ListByMessage(ctx context.Context, messageID string) ([]*model.MessageEvent, error)
}

// RuleRepo reads the deterministic rule table the Rule Engine matches
// against.
type RuleRepo interface {
	ListActive(ctx context.Context) ([]*model.Rule, error)
	GetByID(ctx context.Context, id string) (*model.Rule, error)
}

// AppointmentRepo persists booked appointments.
type AppointmentRepo interface {
	Create(ctx context.Context, a *model.Appointment) error
	GetByApptNumber(ctx context.Context, apptNumber string) (*model.Appointment, error)
	Update(ctx context.Context, a *model.Appointment) error
	NextApptNumber(ctx context.Context, year int) (string, error)
}

// OrderRepo persists captured orders.
type OrderRepo interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
}

// CalendarResourceRepo reads/writes bookable calendar resources. It also
// satisfies internal/availability.ResourceRepo.
type CalendarResourceRepo interface {
	GetByID(ctx context.Context, id string) (*model.CalendarResource, error)
	ListByResourceName(ctx context.Context, name string) ([]*model.CalendarResource, error)
	ListAll(ctx context.Context) ([]*model.CalendarResource, error)
	UpdateCredentials(ctx context.Context, id string, encryptedCredentials string) error
}

// CalendarBlockRepo reads/writes persisted busy intervals. It also
// satisfies internal/availability.BlockRepo.
type CalendarBlockRepo interface {
	ListForDate(ctx context.Context, resourceID string, date string) ([]*model.CalendarBlock, error)
	Create(ctx context.Context, b *model.CalendarBlock) error
	DeleteByAppointment(ctx context.Context, appointmentID string) error
}

// ConfigRepo reads/writes the single-row OrchestratorConfig.
type ConfigRepo interface {
	Get(ctx context.Context) (*model.OrchestratorConfig, error)
	Save(ctx context.Context, cfg *model.OrchestratorConfig) error
}

// Store aggregates every repository the orchestrator depends on.
type Store struct {
	Conversations     ConversationRepo
	Messages          MessageRepo
	MessageEvents     MessageEventRepo
	Rules             RuleRepo
	Appointments      AppointmentRepo
	Orders            OrderRepo
	CalendarResources CalendarResourceRepo
	CalendarBlocks    CalendarBlockRepo
	Config            ConfigRepo
}
