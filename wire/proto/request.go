package proto

import (
	"github.com/fentonlabs/daxc/wire/cbe"
	"github.com/fentonlabs/daxc/wire/common"
)

// Serialize frames one request: service id, method id, parameters.
func Serialize(method common.Method, params cbe.Value) []byte {
	buf := cbe.AppendValue(nil, cbe.Uint(common.ServiceID))
	buf = cbe.AppendValue(buf, cbe.Uint(uint64(method)))
	return cbe.AppendValue(buf, params)
}

// SerializeAuth frames the authorizeConnection request. Unlike every other
// operation it carries no parameter mapping: the frame is seven top-level
// values in fixed order (service id, method id, access key, signature,
// string to sign, token, user agent); absent token and user agent are
// encoded as null.
func SerializeAuth(accessKey, signature string, stringToSign []byte, token, userAgent string) []byte {
	buf := cbe.AppendValue(nil, cbe.Uint(common.ServiceID))
	buf = cbe.AppendValue(buf, cbe.Uint(uint64(common.MethodAuthorizeConnection)))
	buf = cbe.AppendValue(buf, cbe.Text(accessKey))
	buf = cbe.AppendValue(buf, cbe.Text(signature))
	buf = cbe.AppendValue(buf, cbe.Bytes(stringToSign))
	if token != "" {
		buf = cbe.AppendValue(buf, cbe.Text(token))
	} else {
		buf = cbe.AppendValue(buf, cbe.Null())
	}
	if userAgent != "" {
		buf = cbe.AppendValue(buf, cbe.Text(userAgent))
	} else {
		buf = cbe.AppendValue(buf, cbe.Null())
	}
	return buf
}
