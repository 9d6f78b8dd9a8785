package mongodb

import (
	"context"
	"errors"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pawmart/chatserver/internal/chat"
	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/pawmart/chatserver/internal/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// sessionDoc adds the store-side fields the domain type does not carry: the
// unordered-pair lookup key and the per-chat sequence counter.
type sessionDoc struct {
	chat.Session `bson:",inline"`
	PairKey      string `bson:"pairKey"`
	Seq          uint64 `bson:"seq"`
}

type Engine struct {
	sessions *mongo.Collection
	messages *mongo.Collection
}

func NewEngine(client *mongo.Client) *Engine {
	database := client.Database("chatserver")

	return &Engine{
		sessions: database.Collection("sessions"),
		messages: database.Collection("messages"),
	}
}

func (e *Engine) Setup(ctx context.Context) error {
	// At most one active session per unordered participant pair per kind.
	pairIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "pairKey", Value: 1},
			{Key: "kind", Value: 1},
		},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: "isActive", Value: true}}),
	}

	participantsIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "participants", Value: 1},
			{Key: "lastActivityAt", Value: -1},
		},
	}

	_, err := e.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{pairIndexModel, participantsIndexModel})
	if err != nil {
		return err
	}

	chatOrderIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "chatId", Value: 1},
			{Key: "seq", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = e.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{chatOrderIndexModel})

	return err
}

func (e *Engine) CreateSession(ctx context.Context, session chat.Session) error {
	doc := sessionDoc{
		Session: session,
		PairKey: chat.PairKey(session.Participants[0], session.Participants[1]),
	}

	_, err := e.sessions.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ierr.New(ierr.ErrorCodeAlreadyExists, errors.New("active session already exists for pair"))
	}

	return err
}

func (e *Engine) FindActiveSession(ctx context.Context, pairKey string, kind chat.SessionKind) (chat.Session, error) {
	filter := bson.M{
		"pairKey":  pairKey,
		"kind":     kind,
		"isActive": true,
	}

	var doc sessionDoc
	err := e.sessions.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Session{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("no active session for pair"))
	}
	if err != nil {
		return chat.Session{}, err
	}

	return doc.Session, nil
}

func (e *Engine) GetSession(ctx context.Context, chatId string) (chat.Session, error) {
	var doc sessionDoc
	err := e.sessions.FindOne(ctx, bson.M{"_id": chatId}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Session{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("session not found: "+chatId))
	}
	if err != nil {
		return chat.Session{}, err
	}

	return doc.Session, nil
}

func (e *Engine) ListSessions(ctx context.Context, identityId string) ([]chat.Session, error) {
	filter := bson.M{
		"participants": identityId,
		"isActive":     true,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "lastActivityAt", Value: -1}})

	result, err := e.sessions.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var docs []sessionDoc
	err = result.All(ctx, &docs)
	if err != nil {
		return nil, err
	}

	sessions := make([]chat.Session, len(docs))
	for i, doc := range docs {
		sessions[i] = doc.Session
	}

	return sessions, nil
}

func (e *Engine) SaveMessage(ctx context.Context, request store.SaveMessageRequest) (chat.Message, error) {
	// The sequence counter lives on the session document, so allocation is a
	// single atomic increment and a missing or inactive session surfaces here.
	filter := bson.M{"_id": request.ChatId, "isActive": true}
	update := bson.M{"$inc": bson.M{"seq": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc sessionDoc
	err := e.sessions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Message{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("session not found: "+request.ChatId))
	}
	if err != nil {
		return chat.Message{}, err
	}

	message := chat.Message{
		Id:        gonanoid.Must(),
		ChatId:    request.ChatId,
		SenderId:  request.SenderId,
		Content:   request.Content,
		Kind:      request.Kind,
		FileRef:   request.FileRef,
		Seq:       doc.Seq,
		CreatedAt: time.Now(),
	}

	_, err = e.messages.InsertOne(ctx, message)
	if err != nil {
		return chat.Message{}, err
	}

	return message, nil
}

func (e *Engine) AdvanceLastActivity(ctx context.Context, chatId string, messageId string, at time.Time) error {
	// The timestamp guard keeps a reordered acknowledgment from moving the
	// pointer backward; a non-matching filter is a successful no-op.
	filter := bson.M{
		"_id":            chatId,
		"lastActivityAt": bson.M{"$lte": at},
	}
	update := bson.M{"$set": bson.M{
		"lastMessageId":  messageId,
		"lastActivityAt": at,
	}}

	_, err := e.sessions.UpdateOne(ctx, filter, update)

	return err
}

func (e *Engine) ListMessages(ctx context.Context, chatId string, page int, pageSize int) ([]chat.Message, error) {
	filter := bson.M{"chatId": chatId}
	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: 1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	result, err := e.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var messages []chat.Message
	err = result.All(ctx, &messages)
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (e *Engine) MarkMessagesRead(ctx context.Context, chatId string, messageIds []string, readerId string, at time.Time) ([]string, error) {
	eligibleFilter := bson.M{
		"_id":      bson.M{"$in": messageIds},
		"chatId":   chatId,
		"senderId": bson.M{"$ne": readerId},
	}
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}})

	result, err := e.messages.Find(ctx, eligibleFilter, opts)
	if err != nil {
		return nil, err
	}

	var docs []struct {
		Id string `bson:"_id"`
	}
	err = result.All(ctx, &docs)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return nil, nil
	}

	eligible := make([]string, len(docs))
	for i, doc := range docs {
		eligible[i] = doc.Id
	}

	// Already-read messages keep their original readAt.
	updateFilter := bson.M{
		"_id":    bson.M{"$in": eligible},
		"isRead": false,
	}
	update := bson.M{"$set": bson.M{
		"isRead": true,
		"readAt": at,
	}}

	_, err = e.messages.UpdateMany(ctx, updateFilter, update)
	if err != nil {
		return nil, err
	}

	return eligible, nil
}
