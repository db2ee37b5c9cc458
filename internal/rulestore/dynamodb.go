package rulestore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AdRoll/goamz/aws"
	"github.com/AdRoll/goamz/dynamodb"

	"github.com/grl-engine/grlrules/internal/logging"
)

// DynamoDBRepository implements Repository on DynamoDB, grounded on
// storage/dynamodb/dynamodb.go: the same aws.Region/aws.Auth
// resolution (env vars, or a "local" region talking to a mock
// DynamoDB endpoint), the same create-table-if-missing init step, and
// the same single-hash-key item shape (the teacher's Location item
// keyed by location name; this repository's item keyed by
// name+"@"+version instead, since a rule record is identified by both
// fields together rather than one).
type DynamoDBRepository struct {
	server    *dynamodb.Server
	table     *dynamodb.Table
	tableName string
	consistent bool
}

// DynamoDBConfig mirrors the teacher's DynamoDBConfig.
type DynamoDBConfig struct {
	Region     string
	TableName  string
	Consistent bool
}

// ParseDynamoDBConfig parses "region[:tableName[:(true|false)]]", the
// same layout storage/dynamodb/dynamodb.go's ParseConfig accepts.
func ParseDynamoDBConfig(config string) (DynamoDBConfig, error) {
	c := DynamoDBConfig{Region: "us-west-1", TableName: "rule_versions", Consistent: false}
	parts := strings.SplitN(config, ":", 3)
	if len(parts) > 0 && parts[0] != "" {
		c.Region = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		c.TableName = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		con, err := strconv.ParseBool(parts[2])
		if err != nil {
			return DynamoDBConfig{}, fmt.Errorf("rulestore: invalid consistent flag %q: %w", parts[2], err)
		}
		c.Consistent = con
	}
	return c, nil
}

func getDynamoServer(region string) (*dynamodb.Server, error) {
	if region == "local" {
		r := aws.Region{DynamoDBEndpoint: "http://127.0.0.1:8000"}
		auth := aws.Auth{AccessKey: "DUMMY_KEY", SecretKey: "DUMMY_SECRET"}
		return dynamodb.New(auth, r), nil
	}
	if strings.HasPrefix(region, "http:") {
		r := aws.Region{DynamoDBEndpoint: region}
		auth, err := aws.GetAuth("", "", "", time.Now().Add(100000*time.Hour))
		if err != nil {
			return nil, err
		}
		return dynamodb.New(auth, r), nil
	}
	auth, err := aws.EnvAuth()
	if err != nil {
		return nil, err
	}
	r, found := aws.Regions[region]
	if !found {
		return nil, fmt.Errorf("rulestore: unknown AWS region %q", region)
	}
	return dynamodb.New(auth, r), nil
}

func dynamoRuleTableDescription(name string) *dynamodb.TableDescriptionT {
	return &dynamodb.TableDescriptionT{
		TableName: name,
		AttributeDefinitions: []dynamodb.AttributeDefinitionT{
			{Name: "id", Type: "S"},
		},
		KeySchema: []dynamodb.KeySchemaT{
			{AttributeName: "id", KeyType: "HASH"},
		},
		ProvisionedThroughput: dynamodb.ProvisionedThroughputT{
			ReadCapacityUnits:  1,
			WriteCapacityUnits: 1,
		},
	}
}

func NewDynamoDBRepository(cfg DynamoDBConfig) (*DynamoDBRepository, error) {
	logging.Log(logging.INFO|logging.RULESTORE, "op", "rulestore.NewDynamoDBRepository", "region", cfg.Region, "table", cfg.TableName)
	server, err := getDynamoServer(cfg.Region)
	if err != nil {
		return nil, err
	}
	r := &DynamoDBRepository{server: server, tableName: cfg.TableName, consistent: cfg.Consistent}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *DynamoDBRepository) init() error {
	td, err := r.server.DescribeTable(r.tableName)
	if err != nil {
		td = dynamoRuleTableDescription(r.tableName)
		if _, err := r.server.CreateTable(*td); err != nil {
			return err
		}
	}
	pk, err := td.BuildPrimaryKey()
	if err != nil {
		return err
	}
	r.table = r.server.NewTable(r.tableName, pk)
	return nil
}

func itemID(name, version string) string {
	return name + "@" + version
}

func (r *DynamoDBRepository) Put(ctx context.Context, rec Record) error {
	attrs := []dynamodb.Attribute{
		*dynamodb.NewStringAttribute("name", rec.Name),
		*dynamodb.NewStringAttribute("version", rec.Version),
		*dynamodb.NewStringAttribute("source", rec.Source),
	}
	k := &dynamodb.Key{HashKey: itemID(rec.Name, rec.Version)}
	_, err := r.table.PutItem(k.HashKey, "", attrs)
	return err
}

func (r *DynamoDBRepository) Get(ctx context.Context, name, version string) (Record, bool, error) {
	k := dynamodb.Key{HashKey: itemID(name, version)}
	as, err := r.table.GetItemConsistent(&k, r.consistent)
	if err == dynamodb.ErrNotFound {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	source := ""
	if a, ok := as["source"]; ok {
		source = a.Value
	}
	return Record{Name: name, Version: version, Source: source}, true, nil
}

// ListVersions scans every item and filters client-side by name
// attribute. Fine for this module's demo scale; a production-scale
// deployment would add a global secondary index keyed on "name", per
// the teacher's own acknowledgment (dynamodb.go's "ToDo" notes) that
// this representation doesn't scale past simple access patterns.
func (r *DynamoDBRepository) ListVersions(ctx context.Context, name string) ([]string, error) {
	items, err := r.table.Scan(nil)
	if err != nil {
		return nil, err
	}
	var versions []string
	for _, item := range items {
		if item["name"] != nil && item["name"].Value == name && item["version"] != nil {
			versions = append(versions, item["version"].Value)
		}
	}
	return versions, nil
}

func (r *DynamoDBRepository) Remove(ctx context.Context, name, version string) error {
	k := &dynamodb.Key{HashKey: itemID(name, version)}
	_, err := r.table.DeleteItem(k)
	return err
}

func (r *DynamoDBRepository) Clear(ctx context.Context, name string) (int64, error) {
	versions, err := r.ListVersions(ctx, name)
	if err != nil {
		return 0, err
	}
	for _, v := range versions {
		if err := r.Remove(ctx, name, v); err != nil {
			return 0, err
		}
	}
	return int64(len(versions)), nil
}

func (r *DynamoDBRepository) Stats(ctx context.Context, name string) (Stats, error) {
	versions, err := r.ListVersions(ctx, name)
	if err != nil {
		return Stats{}, err
	}
	return Stats{NumRecords: len(versions)}, nil
}

func (r *DynamoDBRepository) Close(ctx context.Context) error {
	return nil
}

func (r *DynamoDBRepository) Health(ctx context.Context) error {
	_, err := r.server.DescribeTable(r.tableName)
	return err
}
