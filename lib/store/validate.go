package store

// ValidateKey checks that a key addresses a record.
func ValidateKey(key *Key) error {
	if key == nil {
		return NewError(RetCParameterError, "key must not be nil")
	}
	if key.Namespace == "" {
		return NewError(RetCParameterError, "namespace must not be empty")
	}
	return nil
}

// ValidateIndex checks the arguments of CreateIndex.
func ValidateIndex(namespace, indexName, binName string, indexType IndexType) error {
	switch {
	case namespace == "":
		return NewError(RetCParameterError, "namespace must not be empty")
	case indexName == "":
		return NewError(RetCParameterError, "index name must not be empty")
	case binName == "":
		return NewError(RetCParameterError, "bin name must not be empty")
	case indexType != NUMERIC:
		return Errorf(RetCParameterError, "unsupported index type %q", indexType)
	}
	return nil
}

// ValidateStatement checks a query statement.
func ValidateStatement(stmt *Statement) error {
	if stmt == nil {
		return NewError(RetCParameterError, "statement must not be nil")
	}
	if stmt.Namespace == "" {
		return NewError(RetCParameterError, "namespace must not be empty")
	}
	if stmt.Filter != nil && stmt.Filter.Bin == "" {
		return NewError(RetCParameterError, "filter bin must not be empty")
	}
	return nil
}
