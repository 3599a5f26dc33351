package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ruinabla/auth-api/internal/domain"
)

// TOTPSecretRepo provides typed DynamoDB operations for the totp_secrets table.
type TOTPSecretRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTOTPSecretRepo(client *dynamodb.Client, tableName string) *TOTPSecretRepo {
	return &TOTPSecretRepo{client: client, tableName: tableName}
}

func (r *TOTPSecretRepo) Put(ctx context.Context, s *domain.TOTPSecret) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal totp secret: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *TOTPSecretRepo) Get(ctx context.Context, userID string) (*domain.TOTPSecret, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("totp secret not found: %w", domain.ErrNotFound)
	}
	var s domain.TOTPSecret
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *TOTPSecretRepo) Enable(ctx context.Context, userID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("user_id", userID),
		UpdateExpression: aws.String("SET enabled = :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	return err
}

func (r *TOTPSecretRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	return err
}

// SetBackupCodes replaces the stored recovery code set.
func (r *TOTPSecretRepo) SetBackupCodes(ctx context.Context, userID string, codes []string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("user_id", userID),
		UpdateExpression: aws.String("SET backup_codes = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberSS{Value: codes},
		},
	})
	return err
}

// ConsumeBackupCode removes code from the stored string set, but only if the
// set currently contains it. Two concurrent submissions of the same code race
// on the condition and exactly one wins. Returns false when the code was not
// present.
func (r *TOTPSecretRepo) ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error) {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("user_id", userID),
		UpdateExpression:    aws.String("DELETE backup_codes :c"),
		ConditionExpression: aws.String("contains(backup_codes, :code)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c":    &types.AttributeValueMemberSS{Value: []string{code}},
			":code": &types.AttributeValueMemberS{Value: code},
		},
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
