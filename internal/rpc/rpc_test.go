package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidRequest(t *testing.T) {
	req, rpcErr := Decode([]byte(`{"jsonrpc":"2.0","method":"list","params":{},"id":1}`))
	require.Nil(t, rpcErr)
	require.NotNil(t, req)
	assert.Equal(t, "list", req.Method)
	assert.False(t, req.IsNotification())
}

func TestDecodeNotification(t *testing.T) {
	req, rpcErr := Decode([]byte(`{"jsonrpc":"2.0","method":"notification","params":{}}`))
	require.Nil(t, rpcErr)
	require.NotNil(t, req)
	assert.True(t, req.IsNotification())
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	req, rpcErr := Decode([]byte(`not json`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeParseError, rpcErr.Code)
	require.NotNil(t, req)
	assert.Nil(t, req.ID)
}

func TestDecodeRejectsMissingMethod(t *testing.T) {
	req, rpcErr := Decode([]byte(`{"jsonrpc":"2.0","id":1}`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeInvalidRequest, rpcErr.Code)
	require.NotNil(t, req)
	assert.Equal(t, float64(1), req.ID)
}

func TestNewResultResponseRoundTrips(t *testing.T) {
	resp, err := NewResultResponse(float64(1), map[string]any{"code": 0, "message": "OK"})
	require.NoError(t, err)

	data, err := Encode(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Nil(t, decoded["error"])

	var result map[string]any
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, float64(0), result["code"])
}

func TestNewErrorResponseIsExclusiveOfResult(t *testing.T) {
	resp := NewErrorResponse(float64(2), NewError(CodeMethodNotFound, "no such method"))
	data, err := Encode(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["result"])
	require.NotNil(t, decoded["error"])
}

func TestUnmarshalParams(t *testing.T) {
	req := &Request{Params: json.RawMessage(`{"name":"a.txt","size":5}`)}

	var params struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	rpcErr := UnmarshalParams(req, &params)
	require.Nil(t, rpcErr)
	assert.Equal(t, "a.txt", params.Name)
	assert.Equal(t, int64(5), params.Size)
}

func TestUnmarshalParamsRejectsMissingParams(t *testing.T) {
	req := &Request{}
	var params struct{}
	rpcErr := UnmarshalParams(req, &params)
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeInvalidParams, rpcErr.Code)
}
