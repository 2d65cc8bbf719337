package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldMonthIndex = "month_index"
	FieldExpenseID  = "expense_id"
	FieldCategory   = "category"
	FieldAmount     = "amount_paise"
	FieldCount      = "count"
	FieldSurface    = "surface"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentAPI    = "api_client"
	ComponentPeriod = "period_loader"
	ComponentState  = "state"
	ComponentViews  = "views"
	ComponentPrefs  = "prefs"
	ComponentEvents = "events"
	ComponentCache  = "cache"
	ComponentNotify = "notify"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpRefresh  = "refresh"
	OpExport   = "export"
	OpValidate = "validate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
