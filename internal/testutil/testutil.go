package testutil

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/log"
)

func PanicIfError(err error) {
	if err != nil {
		panic(err)
	}
}

func TestLogger() log.Logger {
	if strings.ToUpper(os.Getenv("TEST_TRACE")) == "ON" {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return log.NewZapLogger(logger)
	}

	return log.NewZapLogger(zap.NewNop())
}

// TestConfig returns a client configuration pointed at a test server with fast bulk polling.
func TestConfig(baseURL string) *config.ClientConfig {
	return config.NewClientConfigWithLogger(TestLogger(), baseURL).
		WithUser("admin").
		WithPageSize(10).
		WithBulkPollInterval(5 * time.Millisecond)
}

// PublishedPoints returns n published point fixtures of one publisher, ordered by xid.
func PublishedPoints(publisherXID string, n int) []map[string]interface{} {
	points := make([]map[string]interface{}, n)
	for i := range points {
		points[i] = map[string]interface{}{
			"xid":          fmt.Sprintf("PP_%03d", i+1),
			"name":         fmt.Sprintf("Point %d", i+1),
			"enabled":      true,
			"dataPointXid": fmt.Sprintf("DP_%03d", i+1),
			"publisherXid": publisherXID,
			"modelType":    "HTTP",
		}
	}
	return points
}

// Users returns a few user fixtures with distinct roles.
func Users() []map[string]interface{} {
	return []map[string]interface{}{
		{"xid": "admin", "username": "admin", "name": "Administrator", "email": "admin@example.com",
			"roles": []string{"superadmin"}, "inheritedRoles": []string{"superadmin", "user"}},
		{"xid": "operator", "username": "operator", "name": "Operator", "email": "operator@example.com",
			"roles": []string{"operators"}, "inheritedRoles": []string{"operators", "user"}},
		{"xid": "viewer", "username": "viewer", "name": "Viewer", "email": "viewer@example.com",
			"roles": []string{"user"}, "inheritedRoles": []string{"user"}, "disabled": true},
	}
}
