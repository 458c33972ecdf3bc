package mongo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/store/mongo"
)

func TestDecodeRecord_CamelCase(t *testing.T) {
	created := time.Date(2024, 11, 2, 15, 0, 0, 0, time.UTC)
	paid := created.AddDate(0, 1, 0)

	r := mongo.DecodeRecord(bson.M{
		"_id":              "c-1",
		"agentId":          "agent-1",
		"memberId":         "mem-1",
		"enrollmentId":     "enr-1",
		"commissionAmount": 21.0,
		"planType":         "Member + Spouse",
		"planPrice":        int32(149),
		"status":           "Approved",
		"paid":             true,
		"createdAt":        primitive.NewDateTimeFromTime(created),
		"paidAt":           paid,
	})

	assert.Equal(t, "c-1", r.ID)
	assert.Equal(t, "agent-1", r.AgentID)
	assert.InDelta(t, 21.0, r.Amount, 0.0001)
	assert.InDelta(t, 149.0, r.PlanPrice, 0.0001)
	assert.Equal(t, "approved", r.Status)
	assert.True(t, r.Paid)
	assert.True(t, r.CreatedAt.Equal(created))
	require.NotNil(t, r.PaidAt)
	assert.True(t, r.PaidAt.Equal(paid))
}

func TestDecodeRecord_SnakeCaseAndLooseTypes(t *testing.T) {
	// GIVEN: an old document with snake_case keys, string money and an ObjectID
	// WHEN: decoding and normalizing it
	// THEN: it reads back as a canonical commission

	oid := primitive.NewObjectID()
	r := mongo.DecodeRecord(bson.M{
		"_id":               oid,
		"agent_id":          "agent-9",
		"commission_amount": "$17.00",
		"coverage_type":     "Member/Child",
		"plan_price":        "129",
		"payment_status":    "paid",
		"created_at":        "2023-05-04",
	})

	assert.Equal(t, oid.Hex(), r.ID)
	assert.Equal(t, "agent-9", r.AgentID)
	assert.InDelta(t, 17.0, r.Amount, 0.0001)
	assert.True(t, r.Paid)
	assert.Equal(t, 2023, r.CreatedAt.Year())

	c := commission.FromLegacyShape(r)
	assert.Equal(t, commission.CoverageChildren, c.CoverageType)
	assert.Equal(t, commission.PaymentPaid, c.PaymentStatus)
	assert.Equal(t, commission.StatusPending, c.Status)
	assert.True(t, c.CommissionAmount.Equal(commission.MustParseDecimal("17")))
}

func TestDecodeRecord_Empty(t *testing.T) {
	r := mongo.DecodeRecord(bson.M{})

	assert.Empty(t, r.ID)
	assert.Zero(t, r.Amount)
	assert.False(t, r.Paid)
	assert.True(t, r.CreatedAt.IsZero())
	assert.Nil(t, r.PaidAt)
}
