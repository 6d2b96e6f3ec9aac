package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldYear       = "year"
	FieldEntryID    = "entry_id"
	FieldTenants    = "tenants"
	FieldWarnings   = "warnings"
	FieldBackend    = "backend"
)

// Components
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentCalculation = "calculation"
	ComponentHistory     = "history"
	ComponentAMQP        = "amqp"
	ComponentArchive     = "archive"
	ComponentCache       = "cache"
	ComponentTemplate    = "template"
)

// Operations
const (
	OpCalculate = "calculate"
	OpLoad      = "load"
	OpReset     = "reset"
	OpClear     = "clear"
	OpParse     = "parse"
	OpRender    = "render"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields builds a set of attributes for one record.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithCalculation adds the summary of one apportionment.
func (f LogFields) WithCalculation(entryID string, year, tenants int, warnings []string) LogFields {
	if entryID != "" {
		f[FieldEntryID] = entryID
	}
	f[FieldYear] = year
	f[FieldTenants] = tenants
	if len(warnings) > 0 {
		f[FieldWarnings] = warnings
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts the fields to slog's alternating key/value form.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
