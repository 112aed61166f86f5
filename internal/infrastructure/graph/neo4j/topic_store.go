package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// TopicStore keeps the topic/document graph. Topics form the scoping
// dimension for retrieval: a query carrying a topic id is restricted to
// the documents linked under that topic.
type TopicStore struct {
	driver   neo4j.DriverWithContext
	database string
}

func New(ctx context.Context, uri, username, password, database string) (*TopicStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &TopicStore{driver: driver, database: database}, nil
}

func (s *TopicStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *TopicStore) LinkDocument(ctx context.Context, documentID, topicID string) error {
	documentID = strings.TrimSpace(documentID)
	topicID = strings.TrimSpace(topicID)
	if documentID == "" || topicID == "" {
		return fmt.Errorf("link document: document id and topic id are required")
	}

	_, err := neo4j.ExecuteQuery(ctx, s.driver,
		`MERGE (t:Topic {id: $topic_id})
		 MERGE (d:Document {id: $document_id})
		 MERGE (t)-[:CONTAINS]->(d)`,
		map[string]any{
			"topic_id":    topicID,
			"document_id": documentID,
		},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
	)
	if err != nil {
		return fmt.Errorf("link document %s to topic %s: %w", documentID, topicID, err)
	}
	return nil
}

func (s *TopicStore) ResolveDocuments(ctx context.Context, topicID string) ([]string, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return nil, nil
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver,
		`MATCH (t:Topic {id: $topic_id})-[:CONTAINS]->(d:Document)
		 RETURN d.id AS id
		 ORDER BY d.id`,
		map[string]any{"topic_id": topicID},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
	)
	if err != nil {
		return nil, fmt.Errorf("resolve documents for topic %s: %w", topicID, err)
	}

	ids := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		id, ok := record.Get("id")
		if !ok {
			continue
		}
		if value, ok := id.(string); ok && value != "" {
			ids = append(ids, value)
		}
	}
	return ids, nil
}
