// Package mongodb archives nightly report snapshots to MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/warp/sbu-ledger/ledger"
)

const collectionName = "daily_reports"

// DailyReport is the stored document for one unit's day.
type DailyReport struct {
	UnitID             string    `bson:"unit_id" json:"unit_id"`
	Date               string    `bson:"date" json:"date"`
	TotalSales         int64     `bson:"total_sales" json:"total_sales"`
	TotalExpenses      int64     `bson:"total_expenses" json:"total_expenses"`
	NetProfit          int64     `bson:"net_profit" json:"net_profit"`
	PerformancePercent float64   `bson:"performance_percent" json:"performance_percent"`
	PerformanceStatus  string    `bson:"performance_status" json:"performance_status"`
	CreatedAt          time.Time `bson:"created_at" json:"created_at"`
}

// FromSnapshot converts a ledger snapshot to its document form.
func FromSnapshot(snap ledger.ReportSnapshot) DailyReport {
	return DailyReport{
		UnitID:             string(snap.UnitID),
		Date:               snap.Date.String(),
		TotalSales:         snap.TotalSales,
		TotalExpenses:      snap.TotalExpenses,
		NetProfit:          snap.NetProfit,
		PerformancePercent: snap.PerformancePercent,
		PerformanceStatus:  snap.PerformanceStatus,
		CreatedAt:          snap.CreatedAt.UTC(),
	}
}

// Snapshot converts the document back to a ledger snapshot.
func (d DailyReport) Snapshot() (ledger.ReportSnapshot, error) {
	date, err := ledger.ParseDate(d.Date)
	if err != nil {
		return ledger.ReportSnapshot{}, err
	}
	return ledger.ReportSnapshot{
		UnitID:             ledger.UnitID(d.UnitID),
		Date:               date,
		TotalSales:         d.TotalSales,
		TotalExpenses:      d.TotalExpenses,
		NetProfit:          d.NetProfit,
		PerformancePercent: d.PerformancePercent,
		PerformanceStatus:  d.PerformanceStatus,
		CreatedAt:          d.CreatedAt,
	}, nil
}

// Archive implements ledger.SnapshotStore on a MongoDB collection.
type Archive struct {
	client *mongo.Client
	dbName string
}

var _ ledger.SnapshotStore = (*Archive)(nil)

// Connect opens and pings the MongoDB deployment at uri.
func Connect(ctx context.Context, uri, dbName string) (*Archive, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	a := &Archive{client: client, dbName: dbName}
	if err := a.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return a, nil
}

func (a *Archive) collection() *mongo.Collection {
	return a.client.Database(a.dbName).Collection(collectionName)
}

func (a *Archive) ensureIndexes(ctx context.Context) error {
	_, err := a.collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "unit_id", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create daily_reports index: %w", err)
	}
	return nil
}

// SaveSnapshot upserts the document for (unit, date).
func (a *Archive) SaveSnapshot(ctx context.Context, snap ledger.ReportSnapshot) error {
	doc := FromSnapshot(snap)
	_, err := a.collection().ReplaceOne(ctx,
		bson.M{"unit_id": doc.UnitID, "date": doc.Date},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily report: %w", err)
	}
	return nil
}

// GetSnapshot returns the archived document for (unit, date), or nil.
func (a *Archive) GetSnapshot(ctx context.Context, unit ledger.UnitID, date ledger.Date) (*ledger.ReportSnapshot, error) {
	var doc DailyReport
	err := a.collection().FindOne(ctx, bson.M{"unit_id": string(unit), "date": date.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find daily report: %w", err)
	}

	snap, err := doc.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("decode daily report: %w", err)
	}
	return &snap, nil
}

// Close closes the MongoDB connection.
func (a *Archive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
