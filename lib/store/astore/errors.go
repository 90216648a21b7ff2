package astore

import (
	"errors"

	"github.com/ValentinKolb/ixKV/lib/store"
	as "github.com/aerospike/aerospike-client-go/v7"
	"github.com/aerospike/aerospike-client-go/v7/types"
)

// retCodeOf maps an Aerospike result code to the store return code with the same meaning.
func retCodeOf(rc types.ResultCode) store.RetCode {
	switch rc {
	case types.OK:
		return store.RetCSuccess
	case types.KEY_NOT_FOUND_ERROR:
		return store.RetCRecordNotFound
	case types.INDEX_FOUND:
		return store.RetCIndexAlreadyExists
	case types.INDEX_NOTFOUND:
		return store.RetCIndexNotFound
	case types.INDEX_NOTREADABLE:
		return store.RetCIndexNotReadable
	case types.TIMEOUT:
		return store.RetCTimeout
	case types.PARAMETER_ERROR:
		return store.RetCParameterError
	case types.UNSUPPORTED_FEATURE:
		return store.RetCUnsupportedOperation
	default:
		return store.RetCInternalError
	}
}

// fromAerospikeError converts an error of the Aerospike client into a *store.Error.
func fromAerospikeError(err error) error {
	if err == nil {
		return nil
	}
	var se *store.Error
	if errors.As(err, &se) {
		return se
	}
	var ae *as.AerospikeError
	if errors.As(err, &ae) {
		return store.NewError(retCodeOf(ae.ResultCode), err.Error())
	}
	return store.NewError(store.RetCInternalError, err.Error())
}
