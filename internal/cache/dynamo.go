package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// dynamoKeyAttribute is the table's partition key.
const dynamoKeyAttribute = "cache_key"

type dynamoCacheItem struct {
	CacheKey    string   `dynamodbav:"cache_key"`
	Message     string   `dynamodbav:"message"`
	Language    string   `dynamodbav:"language_code"`
	Context     string   `dynamodbav:"context"`
	ContextHash string   `dynamodbav:"context_hash"`
	AudioURL    string   `dynamodbav:"audio_url,omitempty"`
	CourseIDs   []string `dynamodbav:"course_ids,stringset,omitempty"`
	UpdatedAt   string   `dynamodbav:"updated_at"`
}

type DynamoConfig struct {
	TableName string
}

// DynamoBackend stores one item per cache key in a DynamoDB table.
type DynamoBackend struct {
	svc   dynamodbiface.DynamoDBAPI
	table string
}

// NewDynamoBackend creates a DynamoDB-backed cache backend.
func NewDynamoBackend(svc dynamodbiface.DynamoDBAPI, config DynamoConfig) *DynamoBackend {
	table := config.TableName
	if table == "" {
		table = DefaultPrefix
	}
	return &DynamoBackend{svc: svc, table: table}
}

// Fetch reads the item with a strongly consistent read.
func (d *DynamoBackend) Fetch(ctx context.Context, key string) (Entry, bool, error) {
	out, err := d.svc.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]*dynamodb.AttributeValue{
			dynamoKeyAttribute: {S: aws.String(key)},
		},
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("dynamodb get failed: %w", err)
	}
	if len(out.Item) == 0 {
		return Entry{}, false, nil
	}

	var item dynamoCacheItem
	if err := dynamodbattribute.UnmarshalMap(out.Item, &item); err != nil {
		return Entry{}, false, fmt.Errorf("dynamodb unmarshal failed: %w", err)
	}

	entry := Entry{
		Key:         key,
		Language:    item.Language,
		Context:     item.Context,
		ContextHash: item.ContextHash,
		Message:     item.Message,
		AudioURL:    item.AudioURL,
		CourseIDs:   item.CourseIDs,
	}
	sort.Strings(entry.CourseIDs)
	if parsed, err := time.Parse(time.RFC3339Nano, item.UpdatedAt); err == nil {
		entry.UpdatedAt = parsed
	}
	return entry, true, nil
}

// MergeDocument issues a single UpdateItem: SET for the scalar fields and
// ADD for the course id string set. DynamoDB applies both atomically.
func (d *DynamoBackend) MergeDocument(ctx context.Context, key string, doc Document) error {
	input := buildDynamoUpdate(d.table, key, doc)
	if _, err := d.svc.UpdateItemWithContext(ctx, input); err != nil {
		return fmt.Errorf("dynamodb update failed: %w", err)
	}
	return nil
}

func buildDynamoUpdate(table, key string, doc Document) *dynamodb.UpdateItemInput {
	names := map[string]*string{
		"#msg":  aws.String(FieldMessage),
		"#lang": aws.String(FieldLanguage),
		"#ctx":  aws.String(FieldContext),
		"#hash": aws.String(FieldContextHash),
		"#ts":   aws.String(FieldUpdatedAt),
	}
	values := map[string]*dynamodb.AttributeValue{
		":msg":  {S: aws.String(doc.Message)},
		":lang": {S: aws.String(doc.Language)},
		":ctx":  {S: aws.String(doc.Context)},
		":hash": {S: aws.String(doc.ContextHash)},
		":ts":   {S: aws.String(doc.UpdatedAt.UTC().Format(time.RFC3339Nano))},
	}
	set := []string{"#msg = :msg", "#lang = :lang", "#ctx = :ctx", "#hash = :hash", "#ts = :ts"}

	if doc.AudioURL != "" {
		names["#audio"] = aws.String(FieldAudioURL)
		values[":audio"] = &dynamodb.AttributeValue{S: aws.String(doc.AudioURL)}
		set = append(set, "#audio = :audio")
	}

	expr := "SET " + strings.Join(set, ", ")
	if doc.CourseID != "" {
		names["#courses"] = aws.String(FieldCourseIDs)
		values[":courses"] = &dynamodb.AttributeValue{SS: []*string{aws.String(doc.CourseID)}}
		expr += " ADD #courses :courses"
	}

	return &dynamodb.UpdateItemInput{
		TableName: aws.String(table),
		Key: map[string]*dynamodb.AttributeValue{
			dynamoKeyAttribute: {S: aws.String(key)},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
}
