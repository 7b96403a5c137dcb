package ports

import "context"

type ctxKey string

const (
	CtxImportRecordID ctxKey = "import_record_id"
	CtxImportTenantID ctxKey = "import_tenant_id"
)

type Processor interface {
	Type() string
	ProcessBatch(ctx context.Context, batch []map[string]string) error
}

func ValueFrom(ctx context.Context, key ctxKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
