// Package dynamodb stores snapshots in a single DynamoDB table.
//
// Item layout:
//
//	PK=SNAPSHOT#<id>      SK=META   snapshot header and residues
//	PK=SNAPSHOTNAME#<name> SK=META  name reservation
//
// Headers also carry GSI1PK=SNAPSHOTS and GSI1SK=<createdAt>#<id> so the
// list query returns them newest first.
package dynamodb

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/infrastructure/persistence/record"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

const (
	entityType     = "SNAPSHOT"
	metaSK         = "META"
	listPartition  = "SNAPSHOTS"
	DefaultGSIName = "GSI1"
)

// API is the subset of the DynamoDB client the repository needs.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// SnapshotRepository implements ports.SnapshotRepository using DynamoDB
type SnapshotRepository struct {
	client    API
	tableName string
	indexName string
	logger    *zap.Logger
}

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a repository. An empty indexName uses DefaultGSIName.
func NewSnapshotRepository(client API, tableName, indexName string, logger *zap.Logger) *SnapshotRepository {
	if indexName == "" {
		indexName = DefaultGSIName
	}
	return &SnapshotRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

type snapshotItem struct {
	PK           string           `dynamodbav:"PK"`
	SK           string           `dynamodbav:"SK"`
	EntityType   string           `dynamodbav:"EntityType"`
	GSI1PK       string           `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK       string           `dynamodbav:"GSI1SK,omitempty"`
	SnapshotID   string           `dynamodbav:"SnapshotID"`
	Name         string           `dynamodbav:"Name"`
	GraphID      string           `dynamodbav:"GraphID,omitempty"`
	ArchiveKey   string           `dynamodbav:"ArchiveKey,omitempty"`
	CreatedAt    string           `dynamodbav:"CreatedAt"`
	ResidueCount int              `dynamodbav:"ResidueCount"`
	Residues     []record.Residue `dynamodbav:"Residues,omitempty"`
}

type nameItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	SnapshotID string `dynamodbav:"SnapshotID"`
}

func snapshotKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "SNAPSHOT#" + id},
		"SK": &types.AttributeValueMemberS{Value: metaSK},
	}
}

func nameKey(name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "SNAPSHOTNAME#" + name},
		"SK": &types.AttributeValueMemberS{Value: metaSK},
	}
}

// Save writes the snapshot and reserves its name in one transaction.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *entities.Snapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return pkgerrors.NewValidationError("invalid snapshot")
	}

	item, err := attributevalue.MarshalMap(toItem(snapshot))
	if err != nil {
		return pkgerrors.NewInternalError("failed to marshal snapshot").WithCause(err)
	}
	reservation, err := attributevalue.MarshalMap(nameItem{
		PK:         "SNAPSHOTNAME#" + snapshot.Name,
		SK:         metaSK,
		EntityType: "SNAPSHOT_NAME",
		SnapshotID: snapshot.ID,
	})
	if err != nil {
		return pkgerrors.NewInternalError("failed to marshal snapshot name").WithCause(err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build expression").WithCause(err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                 aws.String(r.tableName),
				Item:                      item,
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			}},
			{Put: &types.Put{
				TableName:                 aws.String(r.tableName),
				Item:                      reservation,
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			}},
		},
	})
	if err != nil {
		return classify(ctx, err, "save snapshot").
			WithDetail("id", snapshot.ID).
			WithDetail("name", snapshot.Name)
	}

	r.logger.Debug("Snapshot saved",
		zap.String("snapshotID", snapshot.ID),
		zap.String("name", snapshot.Name),
		zap.Int("residues", len(snapshot.Residues)),
	)
	return nil
}

// Get retrieves a snapshot with its residues
func (r *SnapshotRepository) Get(ctx context.Context, id string) (*entities.Snapshot, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            snapshotKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify(ctx, err, "get snapshot")
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("snapshot").WithDetail("id", id)
	}

	var item snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewInternalError("failed to unmarshal snapshot").WithCause(err)
	}
	return fromItem(item)
}

// List queries the header index newest first, without residues.
func (r *SnapshotRepository) List(ctx context.Context, limit int) ([]*entities.Snapshot, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(listPartition))).
		WithProjection(expression.NamesList(
			expression.Name("PK"),
			expression.Name("SK"),
			expression.Name("SnapshotID"),
			expression.Name("Name"),
			expression.Name("GraphID"),
			expression.Name("ArchiveKey"),
			expression.Name("CreatedAt"),
			expression.Name("ResidueCount"),
		)).
		Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build expression").WithCause(err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, classify(ctx, err, "list snapshots")
	}

	snapshots := make([]*entities.Snapshot, 0, len(result.Items))
	for _, raw := range result.Items {
		var item snapshotItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("Failed to parse snapshot item", zap.Error(err))
			continue
		}
		s, err := fromItem(item)
		if err != nil {
			r.logger.Warn("Skipping unreadable snapshot", zap.String("snapshotID", item.SnapshotID), zap.Error(err))
			continue
		}
		snapshots = append(snapshots, s)
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// Delete removes the snapshot and releases its name.
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build expression").WithCause(err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                 aws.String(r.tableName),
				Key:                       snapshotKey(id),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       nameKey(existing.Name),
			}},
		},
	})
	if err != nil {
		appErr := classify(ctx, err, "delete snapshot")
		if appErr.Type == pkgerrors.ErrorTypeConflict {
			return pkgerrors.NewNotFoundError("snapshot").WithDetail("id", id)
		}
		return appErr
	}

	r.logger.Debug("Snapshot deleted", zap.String("snapshotID", id))
	return nil
}

func toItem(s *entities.Snapshot) snapshotItem {
	created := s.CreatedAt.UTC().Format(time.RFC3339Nano)
	item := snapshotItem{
		PK:           "SNAPSHOT#" + s.ID,
		SK:           metaSK,
		EntityType:   entityType,
		GSI1PK:       listPartition,
		GSI1SK:       created + "#" + s.ID,
		SnapshotID:   s.ID,
		Name:         s.Name,
		GraphID:      s.GraphID,
		ArchiveKey:   s.ArchiveKey,
		CreatedAt:    created,
		ResidueCount: len(s.Residues),
		Residues:     record.FromResidues(s.Residues),
	}
	return item
}

func fromItem(item snapshotItem) (*entities.Snapshot, error) {
	created, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, pkgerrors.NewInternalError("invalid snapshot timestamp").WithCause(err)
	}

	residues, err := record.ToResidues(item.Residues)
	if err != nil {
		return nil, pkgerrors.NewInternalError("invalid residue in snapshot").WithCause(err)
	}

	return &entities.Snapshot{
		ID:         item.SnapshotID,
		Name:       item.Name,
		GraphID:    item.GraphID,
		Residues:   residues,
		CreatedAt:  created,
		ArchiveKey: item.ArchiveKey,
	}, nil
}

// classify maps SDK failures onto application error types.
func classify(ctx context.Context, err error, operation string) *pkgerrors.AppError {
	if ctxErr := pkgerrors.FromContext(ctx, operation); ctxErr != nil {
		return ctxErr
	}

	var ccf *types.ConditionalCheckFailedException
	var tce *types.TransactionCanceledException
	if errors.As(err, &ccf) || errors.As(err, &tce) {
		return pkgerrors.NewConflictError(operation + ": condition not met").WithCause(err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ProvisionedThroughputExceededException", "RequestLimitExceeded", "InternalServerError":
			return pkgerrors.NewTransportError(operation+" throttled", err).WithCode(apiErr.ErrorCode())
		case "ResourceNotFoundException":
			return pkgerrors.NewInternalError(operation + ": table not found").WithCode(apiErr.ErrorCode()).WithCause(err)
		}
		return pkgerrors.NewInternalError(operation + " failed").WithCode(apiErr.ErrorCode()).WithCause(err)
	}
	return pkgerrors.NewTransportError(operation+" failed", err)
}
