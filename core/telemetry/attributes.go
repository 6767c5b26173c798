package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys used across dispatch spans.
const (
	attrContract     = "contract"
	attrOperation    = "operation"
	attrKind         = "operation_kind"
	attrInvocationID = "invocation_id"
)

func ContractName(name string) attribute.KeyValue {
	return attribute.String(attrContract, name)
}

func OperationName(name string) attribute.KeyValue {
	return attribute.String(attrOperation, name)
}

func OperationKind(kind string) attribute.KeyValue {
	return attribute.String(attrKind, kind)
}

func InvocationID(id string) attribute.KeyValue {
	return attribute.String(attrInvocationID, id)
}
