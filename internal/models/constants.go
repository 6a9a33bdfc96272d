package models

const (
	StatusReserved = "reserved"
	StatusActive   = "active"
	StatusReturned = "returned"
	StatusOverdue  = "overdue"
)

const (
	CollectionItems    = "items"
	CollectionBookings = "bookings"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// DefaultStateTTL время жизни состояния drag-сессии
	DefaultStateTTL = 30 * 60 // 30 минут в секундах

	// DefaultSettingsTTL время жизни кэша настроек white-label
	DefaultSettingsTTL = 24 * 60 * 60

	// DefaultEmployeeTTL время жизни выбранного сотрудника
	DefaultEmployeeTTL = 12 * 60 * 60

	// MinDragDays минимальная длительность брони, созданной перетаскиванием
	MinDragDays = 2

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128

	// RateLimitRPS запросов в секунду по умолчанию
	RateLimitRPS = 20
)
