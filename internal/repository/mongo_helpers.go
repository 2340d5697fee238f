package repository

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	MessagesCollection    = "messages"
	ChatsCollection       = "chats"
	AttachmentsCollection = "attachments"
)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// normalizeTimestamp accepts every createdAt encoding seen in the messages collection:
// BSON datetime, BSON timestamp, ISO-8601 strings and epoch milliseconds.
func normalizeTimestamp(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case bson.DateTime:
		return v.Time().UTC(), nil
	case bson.Timestamp:
		return time.Unix(int64(v.T), 0).UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int32:
		return time.UnixMilli(int64(v)).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, fmt.Errorf("invalid timestamp %v", v)
		}
		return time.UnixMilli(int64(v)).UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", v)
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", value)
	}
}

// docIDString renders an _id as the opaque string handed to the view.
func docIDString(value any) string {
	switch v := value.(type) {
	case bson.ObjectID:
		return v.Hex()
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// docIDValue is the inverse of docIDString for filters.
func docIDValue(id string) any {
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func docIDValues(ids []string) bson.A {
	values := make(bson.A, 0, len(ids))
	for _, id := range ids {
		values = append(values, docIDValue(id))
	}
	return values
}

// metadataMap flattens nested BSON documents so callers only ever see plain maps.
func metadataMap(value map[string]any) map[string]any {
	if len(value) == 0 {
		return nil
	}
	out := make(map[string]any, len(value))
	for k, v := range value {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(value any) any {
	switch v := value.(type) {
	case bson.D:
		m := make(map[string]any, len(v))
		for _, e := range v {
			m[e.Key] = plainValue(e.Value)
		}
		return m
	case bson.M:
		return metadataMap(map[string]any(v))
	case map[string]any:
		return metadataMap(v)
	case bson.A:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = plainValue(item)
		}
		return out
	case bson.DateTime:
		return v.Time().UTC()
	case bson.ObjectID:
		return v.Hex()
	default:
		return v
	}
}
