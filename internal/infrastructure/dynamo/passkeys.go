package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ruinabla/auth-api/internal/domain"
)

// PasskeyRepo provides typed DynamoDB operations for the passkeys table.
type PasskeyRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPasskeyRepo(client *dynamodb.Client, tableName string) *PasskeyRepo {
	return &PasskeyRepo{client: client, tableName: tableName}
}

func (r *PasskeyRepo) Put(ctx context.Context, p *domain.Passkey) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal passkey: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *PasskeyRepo) Get(ctx context.Context, passkeyID string) (*domain.Passkey, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("passkey_id", passkeyID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("passkey not found: %w", domain.ErrNotFound)
	}
	var p domain.Passkey
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PasskeyRepo) GetByCredentialID(ctx context.Context, credentialID string) (*domain.Passkey, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("credential_id-index"),
		KeyConditionExpression: aws.String("credential_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: credentialID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("passkey not found: %w", domain.ErrNotFound)
	}
	var p domain.Passkey
	if err := attributevalue.UnmarshalMap(out.Items[0], &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PasskeyRepo) ListByUser(ctx context.Context, userID string) ([]domain.Passkey, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, err
	}
	var passkeys []domain.Passkey
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &passkeys); err != nil {
		return nil, err
	}
	return passkeys, nil
}

func (r *PasskeyRepo) Delete(ctx context.Context, passkeyID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("passkey_id", passkeyID),
	})
	return err
}

// IncrementCounter bumps the signature counter by one in a single atomic ADD.
func (r *PasskeyRepo) IncrementCounter(ctx context.Context, passkeyID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("passkey_id", passkeyID),
		UpdateExpression: aws.String("ADD #c :one"),
		ExpressionAttributeNames: map[string]string{
			"#c": "counter",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	return err
}
