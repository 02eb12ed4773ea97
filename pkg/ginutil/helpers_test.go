package ginutil

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newContext(target string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", target, nil)
	return c
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		expected int
	}{
		{"missing", "/x", 20},
		{"valid", "/x?limit=5", 5},
		{"malformed", "/x?limit=abc", 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QueryInt(newContext(tt.target), "limit", 20))
		})
	}
}

func TestQueryUint64(t *testing.T) {
	assert.Equal(t, uint64(42), QueryUint64(newContext("/x?before_id=42"), "before_id"))
	assert.Equal(t, uint64(0), QueryUint64(newContext("/x?before_id=-1"), "before_id"))
	assert.Equal(t, uint64(0), QueryUint64(newContext("/x"), "before_id"))
}

func TestParamUint64(t *testing.T) {
	c := newContext("/messages/7")
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	v, err := ParamUint64(c, "id")
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	c.Params = gin.Params{{Key: "id", Value: "seven"}}
	_, err = ParamUint64(c, "id")
	assert.Error(t, err)
}
