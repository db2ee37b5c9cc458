package rulestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocql/gocql"

	"github.com/grl-engine/grlrules/internal/logging"
)

// CassandraRepository implements Repository on Cassandra, grounded on
// storage/cassandra/cassandra.go: same cluster-config-from-string
// parsing, same Quorum consistency default, same "create DDL once at
// init" approach, here only for the table: the keyspace must already
// exist. The table schema is this module's
// own (name/version/source) rather than the teacher's state-row
// schema, since this package stores versioned rule sets, not facts.
// The underlying gocql.Session is itself safe for concurrent use
// (storage/cassandra/cassandra.go's own comment: "cql session is
// synchronized so no need to protect by mutex"), so this type carries
// no additional locking.
type CassandraRepository struct {
	cluster  *gocql.ClusterConfig
	session  *gocql.Session
	keyspace string
}

// CassandraConfig mirrors CassandraDBConfig's parsed shape.
type CassandraConfig struct {
	Nodes    []string
	Username string
	Password string
	Keyspace string
}

// ParseCassandraConfig parses "host:port,host:port;username;password;keyspace",
// the same layout storage/cassandra/cassandra.go's ParseConfig accepts.
func ParseCassandraConfig(config string) (CassandraConfig, error) {
	parts := strings.SplitN(config, ";", 4)
	var c CassandraConfig
	if len(parts) > 0 && parts[0] != "" {
		c.Nodes = strings.Split(parts[0], ",")
	}
	if len(parts) > 1 {
		c.Username = parts[1]
	}
	if len(parts) > 2 {
		c.Password = parts[2]
	}
	if len(parts) > 3 {
		c.Keyspace = parts[3]
	}
	return c, nil
}

const cassandraRuleTableDDL = `
CREATE TABLE IF NOT EXISTS rule_versions (
	name    text,
	version text,
	source  text,
	PRIMARY KEY (name, version)
)`

func NewCassandraRepository(cfg CassandraConfig) (*CassandraRepository, error) {
	logging.Log(logging.INFO|logging.RULESTORE, "op", "rulestore.NewCassandraRepository", "nodes", cfg.Nodes, "keyspace", cfg.Keyspace)
	r := &CassandraRepository{keyspace: cfg.Keyspace}
	r.cluster = gocql.NewCluster(cfg.Nodes...)
	r.cluster.Consistency = gocql.Quorum
	r.cluster.Keyspace = cfg.Keyspace
	if cfg.Username != "" {
		r.cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	session, err := r.cluster.CreateSession()
	if err != nil {
		logging.Log(logging.CRIT|logging.RULESTORE, "op", "rulestore.NewCassandraRepository", "error", err)
		return nil, err
	}
	r.session = session
	if err := r.session.Query(cassandraRuleTableDDL).Exec(); err != nil {
		return nil, fmt.Errorf("rulestore: creating rule_versions table: %w", err)
	}
	return r, nil
}

func (r *CassandraRepository) Put(ctx context.Context, rec Record) error {
	return r.session.Query(
		`INSERT INTO rule_versions (name, version, source) VALUES (?, ?, ?)`,
		rec.Name, rec.Version, rec.Source,
	).WithContext(ctx).Exec()
}

func (r *CassandraRepository) Get(ctx context.Context, name, version string) (Record, bool, error) {
	var source string
	err := r.session.Query(
		`SELECT source FROM rule_versions WHERE name = ? AND version = ?`,
		name, version,
	).WithContext(ctx).Scan(&source)
	if err == gocql.ErrNotFound {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return Record{Name: name, Version: version, Source: source}, true, nil
}

func (r *CassandraRepository) ListVersions(ctx context.Context, name string) ([]string, error) {
	iter := r.session.Query(`SELECT version FROM rule_versions WHERE name = ?`, name).WithContext(ctx).Iter()
	var versions []string
	var v string
	for iter.Scan(&v) {
		versions = append(versions, v)
	}
	return versions, iter.Close()
}

func (r *CassandraRepository) Remove(ctx context.Context, name, version string) error {
	return r.session.Query(`DELETE FROM rule_versions WHERE name = ? AND version = ?`, name, version).WithContext(ctx).Exec()
}

func (r *CassandraRepository) Clear(ctx context.Context, name string) (int64, error) {
	versions, err := r.ListVersions(ctx, name)
	if err != nil {
		return 0, err
	}
	if err := r.session.Query(`DELETE FROM rule_versions WHERE name = ?`, name).WithContext(ctx).Exec(); err != nil {
		return 0, err
	}
	return int64(len(versions)), nil
}

func (r *CassandraRepository) Stats(ctx context.Context, name string) (Stats, error) {
	versions, err := r.ListVersions(ctx, name)
	if err != nil {
		return Stats{}, err
	}
	return Stats{NumRecords: len(versions)}, nil
}

func (r *CassandraRepository) Close(ctx context.Context) error {
	r.session.Close()
	return nil
}

func (r *CassandraRepository) Health(ctx context.Context) error {
	return r.session.Query(`SELECT now() FROM system.local`).WithContext(ctx).Exec()
}
