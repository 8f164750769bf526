package pledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"bloodlink/internal/ledger/models"
	"bloodlink/internal/platform/dynamo"
	"bloodlink/pkg/platform/sentinel"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type pledgeItem struct {
	TransactionID string `dynamodbav:"transaction_id"`
	SessionID     string `dynamodbav:"session_id"`
	Amount        int64  `dynamodbav:"amount"`
	Currency      string `dynamodbav:"currency"`
	DonorName     string `dynamodbav:"donor_name"`
	DonorEmail    string `dynamodbav:"donor_email"`
	RecordedAt    int64  `dynamodbav:"recorded_at"` // unix nanoseconds, sortable
}

func toItem(rec *models.PledgeRecord) pledgeItem {
	return pledgeItem{
		TransactionID: rec.TransactionID,
		SessionID:     rec.SessionID,
		Amount:        rec.Amount,
		Currency:      rec.Currency,
		DonorName:     rec.DonorName,
		DonorEmail:    rec.DonorEmail,
		RecordedAt:    rec.RecordedAt.UnixNano(),
	}
}

func (it pledgeItem) record() *models.PledgeRecord {
	return &models.PledgeRecord{
		TransactionID: it.TransactionID,
		SessionID:     it.SessionID,
		Amount:        it.Amount,
		Currency:      it.Currency,
		DonorName:     it.DonorName,
		DonorEmail:    it.DonorEmail,
		RecordedAt:    time.Unix(0, it.RecordedAt).UTC(),
	}
}

// DynamoStore keeps pledges in a DynamoDB table keyed by transaction_id.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamo(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) FindByTransactionID(ctx context.Context, transactionID string) (*models.PledgeRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            map[string]types.AttributeValue{"transaction_id": &types.AttributeValueMemberS{Value: transactionID}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get pledge: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, sentinel.ErrNotFound
	}
	var item pledgeItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("decode pledge: %w", err)
	}
	return item.record(), nil
}

// InsertIfAbsent is a conditional PutItem; a failed condition means the transaction is
// already recorded.
func (s *DynamoStore) InsertIfAbsent(ctx context.Context, rec *models.PledgeRecord) (bool, error) {
	av, err := attributevalue.MarshalMap(toItem(rec))
	if err != nil {
		return false, fmt.Errorf("encode pledge: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(transaction_id)"),
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return false, nil
		}
		return false, fmt.Errorf("put pledge: %w", err)
	}
	return true, nil
}

func (s *DynamoStore) ListByDonorEmail(ctx context.Context, donorEmail string) ([]*models.PledgeRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(dynamo.DonorIndex),
		KeyConditionExpression: aws.String("donor_email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: donorEmail},
		},
		ScanIndexForward: aws.Bool(false),
	}
	out := []*models.PledgeRecord{}
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query pledges: %w", err)
		}
		recs, err := decodeItems(page.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *DynamoStore) List(ctx context.Context) ([]*models.PledgeRecord, error) {
	out := []*models.PledgeRecord{}
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{TableName: aws.String(s.table)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan pledges: %w", err)
		}
		recs, err := decodeItems(page.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *DynamoStore) Total(ctx context.Context) (int64, int, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	var total int64
	for _, rec := range recs {
		total += rec.Amount
	}
	return total, len(recs), nil
}

func decodeItems(items []map[string]types.AttributeValue) ([]*models.PledgeRecord, error) {
	var decoded []pledgeItem
	if err := attributevalue.UnmarshalListOfMaps(items, &decoded); err != nil {
		return nil, fmt.Errorf("decode pledges: %w", err)
	}
	out := make([]*models.PledgeRecord, 0, len(decoded))
	for _, it := range decoded {
		out = append(out, it.record())
	}
	return out, nil
}
