// Package entity converts raw API records into storable entities.
package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/apiobserve/collector/pkg/config"
	"github.com/apiobserve/collector/pkg/extract"
)

// Entity is one keyed row in the entity store. All attribute values are
// strings; the store does not interpret them.
type Entity struct {
	PartitionKey string            `json:"partition_key"`
	RowKey       string            `json:"row_key"`
	Attributes   map[string]string `json:"attributes"`
}

// FetchedAtField is stamped on every mapped entity with the UTC
// ingestion time in RFC 3339 format.
const FetchedAtField = "fetched_at"

// RowKey value used when a record carries no identifier at all.
// Colliding rows overwrite each other; that is accepted.
const unknownRowKey = "unknown"

// Mapper builds entities for a single partition. When a field mapping
// is configured only the mapped fields are kept; otherwise every
// top-level record field passes through with sanitized names.
type Mapper struct {
	partitionKey string
	idField      string
	mapping      map[string]string
	logger       *zap.Logger
	now          func() time.Time
}

// NewMapper wires a Mapper from the storage and API sections of the
// configuration.
func NewMapper(storage *config.StorageConfig, api *config.APIConfig, logger *zap.Logger) *Mapper {
	return &Mapper{
		partitionKey: storage.PartitionKey,
		idField:      api.IDField,
		mapping:      storage.FieldMapping,
		logger:       logger,
		now:          time.Now,
	}
}

// ToEntity maps one decoded record. It never fails: records without an
// identifier land under the shared "unknown" row key, and non-object
// records are kept whole under a single value attribute.
func (m *Mapper) ToEntity(record interface{}) *Entity {
	e := &Entity{
		PartitionKey: m.partitionKey,
		RowKey:       unknownRowKey,
		Attributes:   map[string]string{},
	}

	obj, ok := record.(map[string]interface{})
	if !ok {
		m.logger.Warn("record is not an object, storing as value",
			zap.String("type", fmt.Sprintf("%T", record)))
		e.Attributes["value"] = Stringify(record)
		e.Attributes[FetchedAtField] = m.now().UTC().Format(time.RFC3339)
		return e
	}

	if id, found := extract.Value(obj, m.idField); found && id != nil {
		e.RowKey = Stringify(id)
	} else {
		m.logger.Warn("record has no id, using fallback row key",
			zap.String("id_field", m.idField))
	}

	if len(m.mapping) > 0 {
		for source, dest := range m.mapping {
			// Absent sources still produce the target attribute, empty.
			v, _ := extract.Value(obj, source)
			e.Attributes[dest] = Stringify(v)
		}
	} else {
		for field, v := range obj {
			e.Attributes[sanitizeField(field)] = Stringify(v)
		}
	}

	e.Attributes[FetchedAtField] = m.now().UTC().Format(time.RFC3339)
	return e
}

// sanitizeField makes a record field name safe to use as an attribute
// name by replacing path separators.
func sanitizeField(field string) string {
	field = strings.ReplaceAll(field, ".", "_")
	return strings.ReplaceAll(field, "/", "_")
}

// Stringify renders any decoded JSON value as an attribute string.
// Nil becomes the empty string, composites are re-encoded as JSON.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case gojson.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case map[string]interface{}, []interface{}:
		b, err := gojson.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
