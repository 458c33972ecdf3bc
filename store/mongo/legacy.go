/*
Package mongo provides the legacy commission store on MongoDB.

PURPOSE:
  The legacy commissions collection predates the new store and was written
  by more than one client over time. Documents use camelCase keys for the
  most part, but older ones carry snake_case keys, numeric strings for
  money, and ObjectID ids. Reads decode tolerantly; writes always use the
  camelCase shape of commission.LegacyCommissionRecord.

INTERFACES IMPLEMENTED:
  commission.LegacyStore
*/
package mongo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/metrics"
)

// DefaultCollection is the legacy commissions collection name.
const DefaultCollection = "commissions"

// Legacy implements commission.LegacyStore on a MongoDB collection.
type Legacy struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// DefaultServerSelectionTimeout bounds how long a call waits for a server
// when the URI does not set serverSelectionTimeoutMS.
const DefaultServerSelectionTimeout = 5 * time.Second

// Connect creates a client for uri and returns a store on
// database.collection. The driver dials lazily: an unreachable server is
// not an error here, only a malformed URI is. Use Ping to check reachability.
func Connect(ctx context.Context, uri, database, collection string) (*Legacy, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().
		SetServerSelectionTimeout(DefaultServerSelectionTimeout).
		ApplyURI(uri)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if collection == "" {
		collection = DefaultCollection
	}
	l := NewLegacy(client.Database(database).Collection(collection))
	l.client = client
	return l, nil
}

// Open connects and then checks the server. A failed ping or index build is
// logged and counted but the store is still returned: the client reconnects
// on its own and every write through it stays best-effort.
func Open(ctx context.Context, uri, database, collection string, logger *zap.Logger, m *metrics.Metrics) (*Legacy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	l, err := Connect(ctx, uri, database, collection)
	if err != nil {
		return nil, err
	}

	if err := l.Ping(ctx); err != nil {
		m.IncLegacyStartupFailure("ping")
		logger.Warn("legacy store unreachable at startup, mirror writes will be retried per call",
			zap.String("database", database),
			zap.Error(err))
		return l, nil
	}
	if err := l.EnsureIndexes(ctx); err != nil {
		m.IncLegacyStartupFailure("index")
		logger.Warn("legacy index creation failed", zap.Error(err))
	}
	return l, nil
}

// Ping checks that a server is reachable.
func (l *Legacy) Ping(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := l.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// EnsureIndexes creates the agentId/createdAt index used by Find.
func (l *Legacy) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := l.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "agentId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo create index: %w", err)
	}
	return nil
}

// NewLegacy wraps an existing collection.
func NewLegacy(collection *mongo.Collection) *Legacy {
	return &Legacy{collection: collection}
}

// Close disconnects the client opened by Connect.
func (l *Legacy) Close(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	return l.client.Disconnect(ctx)
}

// Insert upserts r by id.
func (l *Legacy) Insert(ctx context.Context, r commission.LegacyCommissionRecord) error {
	_, err := l.collection.ReplaceOne(ctx,
		bson.M{"_id": r.ID},
		r,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo insert legacy commission: %w", err)
	}
	return nil
}

// Find returns documents for an agent inside a date range, ordered by
// createdAt. Both key spellings of agent id are matched.
func (l *Legacy) Find(ctx context.Context, q commission.Query) ([]commission.LegacyCommissionRecord, error) {
	cur, err := l.collection.Find(ctx, filterFor(q),
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo find legacy commissions: %w", err)
	}
	defer cur.Close(ctx)

	var records []commission.LegacyCommissionRecord
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo decode legacy commission: %w", err)
		}
		r := DecodeRecord(doc)
		if !q.Range.Contains(r.CreatedAt) {
			continue
		}
		records = append(records, r)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// SetPaid mirrors a payout onto the paid flag.
func (l *Legacy) SetPaid(ctx context.Context, id string, paid bool, paidAt *time.Time) error {
	set := bson.M{"paid": paid, "paidAt": nil}
	if paidAt != nil {
		set["paidAt"] = *paidAt
	}
	res, err := l.collection.UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("mongo set paid: %w", err)
	}
	if res.MatchedCount == 0 {
		return commission.ErrCommissionNotFound
	}
	return nil
}

// filterFor builds the agent filter. The date range is applied after
// decoding, since older documents store createdAt as a string.
func filterFor(q commission.Query) bson.M {
	if q.AgentID == "" {
		return bson.M{}
	}
	return bson.M{"$or": bson.A{
		bson.M{"agentId": q.AgentID},
		bson.M{"agent_id": q.AgentID},
	}}
}

func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

// =============================================================================
// TOLERANT DECODING
// =============================================================================

// DecodeRecord maps a raw legacy document onto LegacyCommissionRecord,
// accepting camelCase and snake_case keys and loosely typed values.
func DecodeRecord(doc bson.M) commission.LegacyCommissionRecord {
	r := commission.LegacyCommissionRecord{
		ID:           asString(first(doc, "_id", "id")),
		AgentID:      asString(first(doc, "agentId", "agent_id")),
		MemberID:     asString(first(doc, "memberId", "member_id", "userId", "user_id")),
		EnrollmentID: asString(first(doc, "enrollmentId", "enrollment_id", "subscriptionId", "subscription_id")),
		Amount:       asFloat(first(doc, "commissionAmount", "commission_amount", "amount")),
		PlanType:     asString(first(doc, "planType", "plan_type", "coverageType", "coverage_type")),
		PlanPrice:    asFloat(first(doc, "planPrice", "plan_price", "totalPlanCost", "total_plan_cost")),
		Status:       strings.ToLower(asString(first(doc, "status"))),
		Paid:         asBool(first(doc, "paid", "isPaid", "is_paid")),
		Notes:        asString(first(doc, "notes")),
	}
	if t, ok := asTime(first(doc, "createdAt", "created_at")); ok {
		r.CreatedAt = t
	}
	if t, ok := asTime(first(doc, "paidAt", "paid_at", "paymentDate", "payment_date")); ok {
		r.PaidAt = &t
	}
	if !r.Paid {
		ps := strings.ToLower(asString(first(doc, "paymentStatus", "payment_status")))
		r.Paid = ps == "paid"
	}
	return r
}

func first(doc bson.M, keys ...string) any {
	for _, k := range keys {
		if v, ok := doc[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case primitive.ObjectID:
		return x.Hex()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(x), "$"), 64)
		return f
	case primitive.Decimal128:
		f, _ := strconv.ParseFloat(x.String(), 64)
		return f
	}
	return 0
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	case int32:
		return x != 0
	case int64:
		return x != 0
	}
	return false
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), true
	case primitive.DateTime:
		return x.Time().UTC(), true
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
