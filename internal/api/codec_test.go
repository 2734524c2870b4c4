package api

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)

	b, err := c.Marshal(&PurchaseRequest{Pack: "party"})
	require.NoError(t, err)
	require.JSONEq(t, `{"pack":"party"}`, string(b))

	var out PurchaseRequest
	require.NoError(t, c.Unmarshal(b, &out))
	require.Equal(t, "party", out.Pack)

	// empty frames decode to the zero value
	require.NoError(t, c.Unmarshal(nil, &out))
}

func TestFullMethod(t *testing.T) {
	require.Equal(t, "/dreamcolor.v1.DreamColor/Export", FullMethod("Export"))
	require.Len(t, ServiceDesc.Methods, 23)
	require.Equal(t, "WatchJob", ServiceDesc.Streams[0].StreamName)
}
