package core

import "fmt"

// ErrorCode is the closed, ABI-stable result code every public operation in
// this module returns. Numeric values and range boundaries come from
// TRENTOS-M's OS_Error_t and must never be renumbered.
type ErrorCode int32

// Generic range: [-26, -1]. Order matches OS_Error_t exactly.
const (
	ErrInProgress ErrorCode = -iota - 1
	ErrTimeout
	ErrIO
	ErrExists
	ErrBufferFull
	ErrBufferEmpty
	ErrNoData
	ErrNotInitialized
	ErrTryAgain
	ErrWouldBlock
	ErrOutOfBounds
	ErrConnectionClosed
	ErrOverflowDetected
	ErrInsufficientSpace
	ErrBufferTooSmall
	ErrAborted
	ErrOperationDenied
	ErrAccessDenied
	ErrNotFound
	ErrInvalidHandle
	ErrInvalidName
	ErrInvalidParameter
	ErrInvalidState
	ErrNotSupported
	ErrNotImplemented
	ErrGeneric
)

// ErrSuccess is the zero value: every ErrorCode-returning operation that
// completed without error reports this.
const ErrSuccess ErrorCode = 0

// Configuration range: [-1002, -1000].
const (
	ErrConfigDomainNotFound ErrorCode = -1000 - iota
	ErrConfigParameterNotFound
	ErrConfigTypeMismatch
)

// Filesystem range: [-1122, -1100].
const (
	ErrFSNoFreeHandle ErrorCode = -1100 - iota
	ErrFSDeleteHandle
	ErrFSNoDisk
	ErrFSInit
	ErrFSRegister
	ErrFSCreateFS
	ErrFSFormatFS
	ErrFSPartitionRead
	ErrFSOpen
	ErrFSClose
	ErrFSMount
	ErrFSUnmount
	ErrFSFileNotFound
	ErrFSOperationDenied
	ErrFSInsufficientStorageCapacity
	ErrFSStructure
	ErrFSResolveHandle
	ErrFSDeleteResolveHandle
	ErrFSLib
	ErrFSDatabufferOverflow
	ErrFSInvalidPartitionMode
	ErrFSPartitionNotReady
	ErrFSInvalidFilesystem
)

// Device range: [-1202, -1200].
const (
	ErrDeviceInvalid ErrorCode = -1200 - iota
	ErrDeviceNotPresent
	ErrDeviceBusy
)

// Network range: [-1316, -1300].
const (
	ErrNetworkNoSupport ErrorCode = -1300 - iota
	ErrNetworkOpNoSupport
	ErrNetworkDown
	ErrNetworkUnreachable
	ErrNetworkNoRoute
	ErrNetworkProto
	ErrNetworkProtoNoSupport
	ErrNetworkProtoOptNoSupport
	ErrNetworkAddrInUse
	ErrNetworkAddrNotAvailable
	ErrNetworkConnReset
	ErrNetworkConnAlreadyBound
	ErrNetworkConnNone
	ErrNetworkConnShutdown
	ErrNetworkConnRefused
	ErrNetworkHostDown
	ErrNetworkHostUnreachable
)

var errorNames = map[ErrorCode]string{
	ErrSuccess: "OS_SUCCESS",

	ErrInProgress:        "OS_ERROR_IN_PROGRESS",
	ErrTimeout:           "OS_ERROR_TIMEOUT",
	ErrIO:                "OS_ERROR_IO",
	ErrExists:            "OS_ERROR_EXISTS",
	ErrBufferFull:        "OS_ERROR_BUFFER_FULL",
	ErrBufferEmpty:       "OS_ERROR_BUFFER_EMPTY",
	ErrNoData:            "OS_ERROR_NO_DATA",
	ErrNotInitialized:    "OS_ERROR_NOT_INITIALIZED",
	ErrTryAgain:          "OS_ERROR_TRY_AGAIN",
	ErrWouldBlock:        "OS_ERROR_WOULD_BLOCK",
	ErrOutOfBounds:       "OS_ERROR_OUT_OF_BOUNDS",
	ErrConnectionClosed:  "OS_ERROR_CONNECTION_CLOSED",
	ErrOverflowDetected:  "OS_ERROR_OVERFLOW_DETECTED",
	ErrInsufficientSpace: "OS_ERROR_INSUFFICIENT_SPACE",
	ErrBufferTooSmall:    "OS_ERROR_BUFFER_TOO_SMALL",
	ErrAborted:           "OS_ERROR_ABORTED",
	ErrOperationDenied:   "OS_ERROR_OPERATION_DENIED",
	ErrAccessDenied:      "OS_ERROR_ACCESS_DENIED",
	ErrNotFound:          "OS_ERROR_NOT_FOUND",
	ErrInvalidHandle:     "OS_ERROR_INVALID_HANDLE",
	ErrInvalidName:       "OS_ERROR_INVALID_NAME",
	ErrInvalidParameter:  "OS_ERROR_INVALID_PARAMETER",
	ErrInvalidState:      "OS_ERROR_INVALID_STATE",
	ErrNotSupported:      "OS_ERROR_NOT_SUPPORTED",
	ErrNotImplemented:    "OS_ERROR_NOT_IMPLEMENTED",
	ErrGeneric:           "OS_ERROR_GENERIC",

	ErrConfigDomainNotFound:    "OS_ERROR_CONFIG_DOMAIN_NOT_FOUND",
	ErrConfigParameterNotFound: "OS_ERROR_CONFIG_PARAMETER_NOT_FOUND",
	ErrConfigTypeMismatch:      "OS_ERROR_CONFIG_TYPE_MISMATCH",

	ErrFSNoFreeHandle:                "OS_ERROR_FS_NO_FREE_HANDLE",
	ErrFSDeleteHandle:                "OS_ERROR_FS_DELETE_HANDLE",
	ErrFSNoDisk:                      "OS_ERROR_FS_NO_DISK",
	ErrFSInit:                        "OS_ERROR_FS_INIT",
	ErrFSRegister:                    "OS_ERROR_FS_REGISTER",
	ErrFSCreateFS:                    "OS_ERROR_FS_CREATE_FS",
	ErrFSFormatFS:                    "OS_ERROR_FS_FORMAT_FS",
	ErrFSPartitionRead:               "OS_ERROR_FS_PARTITION_READ",
	ErrFSOpen:                        "OS_ERROR_FS_OPEN",
	ErrFSClose:                       "OS_ERROR_FS_CLOSE",
	ErrFSMount:                       "OS_ERROR_FS_MOUNT",
	ErrFSUnmount:                     "OS_ERROR_FS_UNMOUNT",
	ErrFSFileNotFound:                "OS_ERROR_FS_FILE_NOT_FOUND",
	ErrFSOperationDenied:             "OS_ERROR_FS_OPERATION_DENIED",
	ErrFSInsufficientStorageCapacity: "OS_ERROR_FS_INSUFFICIENT_STORAGE_CAPACITY",
	ErrFSStructure:                   "OS_ERROR_FS_STRUCTURE",
	ErrFSResolveHandle:               "OS_ERROR_FS_RESOLVE_HANDLE",
	ErrFSDeleteResolveHandle:         "OS_ERROR_FS_DELETE_RESOLVE_HANDLE",
	ErrFSLib:                         "OS_ERROR_FS_LIB",
	ErrFSDatabufferOverflow:          "OS_ERROR_FS_DATABUFFER_OVERLOW",
	ErrFSInvalidPartitionMode:        "OS_ERROR_FS_INVALID_PARTITION_MODE",
	ErrFSPartitionNotReady:           "OS_ERROR_FS_PARTITION_NOT_READY",
	ErrFSInvalidFilesystem:           "OS_ERROR_FS_INVALID_FILESYSTEM",

	ErrDeviceInvalid:    "OS_ERROR_DEVICE_INVALID",
	ErrDeviceNotPresent: "OS_ERROR_DEVICE_NOT_PRESENT",
	ErrDeviceBusy:       "OS_ERROR_DEVICE_BUSY",

	ErrNetworkNoSupport:         "OS_ERROR_NETWORK_NO_SUPPORT",
	ErrNetworkOpNoSupport:       "OS_ERROR_NETWORK_OP_NO_SUPPORT",
	ErrNetworkDown:              "OS_ERROR_NETWORK_DOWN",
	ErrNetworkUnreachable:       "OS_ERROR_NETWORK_UNREACHABLE",
	ErrNetworkNoRoute:           "OS_ERROR_NETWORK_NO_ROUTE",
	ErrNetworkProto:             "OS_ERROR_NETWORK_PROTO",
	ErrNetworkProtoNoSupport:    "OS_ERROR_NETWORK_PROTO_NO_SUPPORT",
	ErrNetworkProtoOptNoSupport: "OS_ERROR_NETWORK_PROTO_OPT_NO_SUPPORT",
	ErrNetworkAddrInUse:         "OS_ERROR_NETWORK_ADDR_IN_USE",
	ErrNetworkAddrNotAvailable:  "OS_ERROR_NETWORK_ADDR_NOT_AVAILABLE",
	ErrNetworkConnReset:         "OS_ERROR_NETWORK_CONN_RESET",
	ErrNetworkConnAlreadyBound:  "OS_ERROR_NETWORK_CONN_ALREADY_BOUND",
	ErrNetworkConnNone:          "OS_ERROR_NETWORK_CONN_NONE",
	ErrNetworkConnShutdown:      "OS_ERROR_NETWORK_CONN_SHUTDOWN",
	ErrNetworkConnRefused:       "OS_ERROR_NETWORK_CONN_REFUSED",
	ErrNetworkHostDown:          "OS_ERROR_NETWORK_HOST_DOWN",
	ErrNetworkHostUnreachable:   "OS_ERROR_NETWORK_HOST_UNREACHABLE",
}

const unknownErrorName = "OS_ERROR_???"

// String returns the stable symbolic name for e, or the sentinel
// "OS_ERROR_???" for any value outside the defined ranges.
func (e ErrorCode) String() string {
	if name, ok := errorNames[e]; ok {
		return name
	}
	return unknownErrorName
}

// Error makes ErrorCode satisfy the error interface so it can be returned,
// wrapped and matched with errors.As directly.
func (e ErrorCode) Error() string {
	if e == ErrSuccess {
		return "success"
	}
	return fmt.Sprintf("%s (%d)", e.String(), int32(e))
}

// CodeOf recovers the ErrorCode carried by err, walking the error chain.
// It returns ErrGeneric for any non-nil error that carries no ErrorCode,
// and ErrSuccess for a nil error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrSuccess
	}
	var code ErrorCode
	if ok := asErrorCode(err, &code); ok {
		return code
	}
	return ErrGeneric
}

func asErrorCode(err error, target *ErrorCode) bool {
	for err != nil {
		if code, ok := err.(ErrorCode); ok {
			*target = code
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
