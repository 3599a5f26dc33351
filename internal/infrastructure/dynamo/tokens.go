package dynamo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ruinabla/auth-api/internal/domain"
)

// EmailTokenRepo provides typed DynamoDB operations for the email_tokens table.
type EmailTokenRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewEmailTokenRepo(client *dynamodb.Client, tableName string) *EmailTokenRepo {
	return &EmailTokenRepo{client: client, tableName: tableName}
}

// Put stores a new token after superseding any outstanding tokens of the same
// type for the same email, so only the latest mailed link works.
func (r *EmailTokenRepo) Put(ctx context.Context, t *domain.EmailToken) error {
	if err := r.DeleteByEmailAndType(ctx, t.Email, t.Type); err != nil {
		slog.Warn("failed to supersede previous tokens", "email", t.Email, "type", t.Type, "err", err)
	}
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal email token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *EmailTokenRepo) Get(ctx context.Context, token string) (*domain.EmailToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("token", token),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("email token not found: %w", domain.ErrNotFound)
	}
	var t domain.EmailToken
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *EmailTokenRepo) Delete(ctx context.Context, token string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("token", token),
	})
	return err
}

func (r *EmailTokenRepo) DeleteByEmailAndType(ctx context.Context, email, tokenType string) error {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("email-index"),
		KeyConditionExpression: aws.String("email = :e"),
		FilterExpression:       aws.String("#t = :ty"),
		ExpressionAttributeNames: map[string]string{
			"#t": "type",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e":  &types.AttributeValueMemberS{Value: email},
			":ty": &types.AttributeValueMemberS{Value: tokenType},
		},
	})
	if err != nil {
		return err
	}
	var firstErr error
	for _, item := range out.Items {
		tokAttr, ok := item["token"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if err := r.Delete(ctx, tokAttr.Value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
