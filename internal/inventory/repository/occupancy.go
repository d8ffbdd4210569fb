package repository

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"coworking/internal/calendar"
	"coworking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// storedRecord is the persisted shape of one occupancy entry.
type storedRecord struct {
	Start    string `bson:"start"`
	End      string `bson:"end"`
	Quantity int    `bson:"quantity"`
	Tier     string `bson:"tier,omitempty"`
	OrderID  string `bson:"order,omitempty"`
	Token    string `bson:"token,omitempty"`
}

func toStored(records []model.OccupancyRecord) []storedRecord {
	stored := make([]storedRecord, 0, len(records))
	for _, r := range records {
		stored = append(stored, storedRecord{
			Start:    r.Start.String(),
			End:      r.End.String(),
			Quantity: r.Units(),
			Tier:     string(r.Tier),
			OrderID:  r.OrderID,
			Token:    r.Token,
		})
	}
	return stored
}

// ParseOccupancy decodes a stored occupancy value. It never fails: anything
// unreadable is dropped. clean reports whether the value was already a
// well-formed array needing no rewrite.
func ParseOccupancy(raw bson.RawValue) (records []model.OccupancyRecord, clean bool) {
	switch raw.Type {
	case 0, bsontype.Null, bsontype.Undefined:
		return []model.OccupancyRecord{}, true
	case bsontype.Array:
		arr, ok := raw.ArrayOK()
		if !ok {
			return []model.OccupancyRecord{}, false
		}
		values, err := arr.Values()
		if err != nil {
			return []model.OccupancyRecord{}, false
		}
		entries := make([]map[string]any, 0, len(values))
		clean = true
		for _, v := range values {
			var entry map[string]any
			if v.Type != bsontype.EmbeddedDocument || v.Unmarshal(&entry) != nil {
				clean = false
				continue
			}
			entries = append(entries, entry)
		}
		records, normalized := normalize(entries)
		return records, clean && normalized
	case bsontype.String:
		records, _ := ParseOccupancyJSON(raw.StringValue())
		// legacy encoding is always rewritten as an array
		return records, false
	default:
		return []model.OccupancyRecord{}, false
	}
}

// ParseOccupancyJSON decodes the legacy JSON text encoding.
func ParseOccupancyJSON(text string) ([]model.OccupancyRecord, bool) {
	if strings.TrimSpace(text) == "" {
		return []model.OccupancyRecord{}, true
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elems); err != nil {
		return []model.OccupancyRecord{}, false
	}
	entries := make([]map[string]any, 0, len(elems))
	clean := true
	for _, e := range elems {
		var entry map[string]any
		if err := json.Unmarshal(e, &entry); err != nil || entry == nil {
			clean = false
			continue
		}
		entries = append(entries, entry)
	}
	records, normalized := normalize(entries)
	return records, clean && normalized
}

func normalize(entries []map[string]any) ([]model.OccupancyRecord, bool) {
	records := make([]model.OccupancyRecord, 0, len(entries))
	clean := true
	for _, entry := range entries {
		rec, exact, ok := normalizeEntry(entry)
		if !ok {
			clean = false
			continue
		}
		clean = clean && exact
		records = append(records, rec)
	}
	return records, clean
}

func normalizeEntry(entry map[string]any) (rec model.OccupancyRecord, exact, ok bool) {
	start, err := calendar.ParseDate(stringField(entry, "start"))
	if err != nil {
		return rec, false, false
	}
	end, err := calendar.ParseDate(stringField(entry, "end"))
	if err != nil || end.Before(start) {
		return rec, false, false
	}

	qty, exact := quantityField(entry["quantity"])
	return model.OccupancyRecord{
		Start:    start,
		End:      end,
		Quantity: qty,
		Tier:     model.Tier(stringField(entry, "tier")),
		OrderID:  stringField(entry, "order"),
		Token:    stringField(entry, "token"),
	}, exact, true
}

func stringField(entry map[string]any, key string) string {
	switch v := entry[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

// quantityField reads a quantity of any numeric encoding; anything below one
// counts as one.
func quantityField(v any) (qty int, exact bool) {
	var n int64
	switch q := v.(type) {
	case nil:
		return 1, false
	case int32:
		n, exact = int64(q), true
	case int64:
		n, exact = q, true
	case int:
		n, exact = int64(q), true
	case float64:
		n, exact = int64(q), q == math.Trunc(q)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(q), 10, 64)
		if err != nil {
			return 1, false
		}
		n = parsed
	default:
		return 1, false
	}
	if n < 1 {
		return 1, false
	}
	return int(n), exact
}
