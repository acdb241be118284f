package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"entrypay/entity"
	"entrypay/internal/config"
)

const (
	collectionUsers         = "users"
	collectionEntries       = "entries"
	collectionMembers       = "entry_members"
	collectionCategories    = "categories"
	collectionTournaments   = "tournaments"
	collectionWebhookEvents = "webhook_events"
)

type MongoDB struct {
	ctx      context.Context
	client   *mongo.Client
	database string
}

func NewMongoClient(conf *config.Config) (*MongoDB, error) {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	m := &MongoDB{
		ctx:      context.Background(),
		client:   client,
		database: conf.Mongo.Database,
	}
	if err = m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *MongoDB) Close() {
	_ = m.client.Disconnect(m.ctx)
}

func (m *MongoDB) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

// ensureIndexes creates the unique indexes the store relies on for
// arbitration between concurrent writers.
func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	_, err := m.collection(collectionEntries).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "category_id", Value: 1}, {Key: "created_by", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("ux_entries_category_creator"),
		},
		{
			Keys: bson.D{{Key: "payment_status", Value: 1}, {Key: "checkout_at", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("mongodb entries index: %w", err)
	}
	_, err = m.collection(collectionMembers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "entry_id", Value: 1}, {Key: "profile_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb members index: %w", err)
	}
	_, err = m.collection(collectionWebhookEvents).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb events index: %w", err)
	}
	return nil
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("mongodb find: %w", err)
}

func (m *MongoDB) EntryByID(ctx context.Context, id string) (*entity.Entry, error) {
	var entry entity.Entry
	err := m.collection(collectionEntries).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&entry)
	if err != nil {
		return nil, m.findError(err)
	}
	return &entry, nil
}

func (m *MongoDB) EntryByOwner(ctx context.Context, categoryId, createdBy string) (*entity.Entry, error) {
	filter := bson.D{{Key: "category_id", Value: categoryId}, {Key: "created_by", Value: createdBy}}
	var entry entity.Entry
	err := m.collection(collectionEntries).FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		return nil, m.findError(err)
	}
	return &entry, nil
}

// CreateEntry inserts the entry and its first member. Mongo has no foreign keys,
// so the category reference is checked here; a failed member insert removes the
// just-created entry again so both writes land or neither does.
func (m *MongoDB) CreateEntry(ctx context.Context, entry *entity.Entry, member *entity.Member) error {
	category, err := m.Category(ctx, entry.CategoryId)
	if err != nil {
		return err
	}
	if category == nil {
		return fmt.Errorf("category %s: %w", entry.CategoryId, entity.ErrInvalidReference)
	}

	return insertEntryWithMember(ctx, m.collection(collectionEntries), m.collection(collectionMembers), entry, member)
}

// rollbackTimeout bounds the compensating delete, which runs detached from the
// request context so a canceled request still removes the entry it created.
const rollbackTimeout = 5 * time.Second

type documentWriter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

func insertEntryWithMember(ctx context.Context, entries, members documentWriter, entry *entity.Entry, member *entity.Member) error {
	_, err := entries.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entity.ErrDuplicateEntry
		}
		return fmt.Errorf("mongodb insert entry: %w", err)
	}
	if member == nil {
		return nil
	}

	_, err = members.InsertOne(ctx, member)
	if err == nil {
		return nil
	}
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if _, delErr := entries.DeleteOne(rbCtx, bson.D{{Key: "_id", Value: entry.Id}}); delErr != nil {
		return fmt.Errorf("mongodb insert member: %w; rollback entry: %v", err, delErr)
	}
	return fmt.Errorf("mongodb insert member: %w", err)
}

func (m *MongoDB) UpdateEntry(ctx context.Context, id string, cond entity.EntryCondition, upd entity.EntryUpdate) (bool, error) {
	if upd.IsEmpty() {
		return false, fmt.Errorf("empty update")
	}
	filter := bson.D{{Key: "_id", Value: id}}
	if len(cond.Status) > 0 {
		filter = append(filter, bson.E{Key: "status", Value: bson.D{{Key: "$in", Value: cond.Status}}})
	}
	if len(cond.PaymentStatus) > 0 {
		filter = append(filter, bson.E{Key: "payment_status", Value: bson.D{{Key: "$in", Value: cond.PaymentStatus}}})
	}

	result, err := m.collection(collectionEntries).UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: updateFields(upd)}})
	if err != nil {
		return false, fmt.Errorf("mongodb update entry: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func updateFields(upd entity.EntryUpdate) bson.D {
	set := bson.D{}
	if upd.Status != "" {
		set = append(set, bson.E{Key: "status", Value: upd.Status})
	}
	if upd.PaymentStatus != "" {
		set = append(set, bson.E{Key: "payment_status", Value: upd.PaymentStatus})
	}
	if upd.PaymentReference != "" {
		set = append(set, bson.E{Key: "payment_reference", Value: upd.PaymentReference})
	}
	if upd.PaymentAmount != "" {
		set = append(set, bson.E{Key: "payment_amount", Value: upd.PaymentAmount})
	}
	if upd.PaymentCurrency != "" {
		set = append(set, bson.E{Key: "payment_currency", Value: upd.PaymentCurrency})
	}
	if upd.PaidAt != nil {
		set = append(set, bson.E{Key: "paid_at", Value: *upd.PaidAt})
	}
	if upd.CheckoutAt != nil {
		set = append(set, bson.E{Key: "checkout_at", Value: *upd.CheckoutAt})
	}
	return set
}

func (m *MongoDB) EntriesAwaitingPayment(ctx context.Context, before time.Time, limit int) ([]*entity.Entry, error) {
	filter := bson.D{
		{Key: "payment_status", Value: entity.PaymentUnpaid},
		{Key: "payment_reference", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: ""}}},
		{Key: "checkout_at", Value: bson.D{{Key: "$lt", Value: before}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "checkout_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := m.collection(collectionEntries).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*entity.Entry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *MongoDB) Category(ctx context.Context, id string) (*entity.Category, error) {
	var category entity.Category
	err := m.collection(collectionCategories).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&category)
	if err != nil {
		return nil, m.findError(err)
	}
	return &category, nil
}

func (m *MongoDB) Tournament(ctx context.Context, id string) (*entity.Tournament, error) {
	var tournament entity.Tournament
	err := m.collection(collectionTournaments).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&tournament)
	if err != nil {
		return nil, m.findError(err)
	}
	return &tournament, nil
}

func (m *MongoDB) SaveWebhookEvent(ctx context.Context, event *entity.WebhookEvent) error {
	filter := bson.D{{Key: "event_id", Value: event.EventId}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "type", Value: event.Type},
			{Key: "entry_id", Value: event.EntryId},
			{Key: "session_id", Value: event.SessionId},
			{Key: "outcome", Value: event.Outcome},
			{Key: "error", Value: event.Error},
			{Key: "received_at", Value: event.ReceivedAt},
		}},
		{Key: "$inc", Value: bson.D{{Key: "deliveries", Value: 1}}},
	}
	opts := options.Update().SetUpsert(true)
	_, err := m.collection(collectionWebhookEvents).UpdateOne(ctx, filter, update, opts)
	return err
}

func (m *MongoDB) GetUser(token string) (*entity.User, error) {
	filter := bson.D{{Key: "token", Value: token}}
	var user entity.User
	err := m.collection(collectionUsers).FindOne(m.ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrUnauthorized
		}
		return nil, err
	}
	return &user, nil
}
