package diag

// Stable diagnostic codes referenced by name elsewhere in the compiler so
// callers never hardcode a numeral. Category is encoded in the leading
// digits per the diagnostic contract: 0xxx collection, 1xxx scope (15xx-17xx
// generics), 2xxx type validation (25xx try/result), 3xxx borrow check,
// 4xxx perks, 9xxx driver/codegen.
const (
	// Collection (Pass 0)
	CodeDuplicateDefinition Code = "CE0001"
	CodeMissingFieldType    Code = "CE0002"
	CodeMissingParamType    Code = "CE0003"
	CodeUnresolvedConstExpr Code = "CE0004"

	// Scope (Pass 1)
	CodeUndefinedName  Code = "CE1001"
	CodeShadowedName   Code = "CW1002"
	CodeUnusedVariable Code = "CW1003"

	// Instantiation / monomorphization (Pass 1.5/1.6/1.7)
	CodeInferenceFailed     Code = "CE1501"
	CodeConstraintViolation Code = "CE1601"
	CodeRecursiveEnumCycle  Code = "CE1701"

	// Type validation (Pass 2)
	CodeUnknownType         Code = "CE2001"
	CodeBlankTypeNotAllowed Code = "CE2002"
	CodeAssignmentMismatch  Code = "CE2010"
	CodeUnhandledResult     Code = "CW2011"
	CodeReturnNotResult     Code = "CE2030"
	CodeReturnOkMismatch    Code = "CE2031"
	CodeReturnErrMismatch   Code = "CE2039"
	CodeRebindTargetInvalid Code = "CE2040"
	CodeRebindPeekTarget    Code = "CE2041"
	CodeRebindTypeMismatch  Code = "CE2042"
	CodeConditionNotBool    Code = "CE2050"
	CodeForeachNotIterator  Code = "CE2060"
	CodeForeachItemMismatch Code = "CE2061"
	CodeArgCountMismatch    Code = "CE2070"
	CodeArgTypeMismatch     Code = "CE2071"
	CodeUnknownMethod       Code = "CE2080"
	CodeMutatingOnImmutable Code = "CE2081"
	CodeInvalidCast         Code = "CE2090"
	CodeMissingReturn       Code = "CE2099"
	CodeTryInMain           Code = "CW2100"
	CodeOutOfBounds         Code = "CE2101"

	// Try-expression / Result propagation
	CodeTryRequiresResultLike Code = "CE2507"
	CodeTryErrTypeMismatch    Code = "CE2508"

	// Perks
	CodeMissingPerkMethod     Code = "CE4001"
	CodePerkMethodSigMismatch Code = "CE4002"
	CodePerkMethodCollision   Code = "CE4003"

	// Borrow check (Pass 3)
	CodeBorrowConflictPeek   Code = "CE3001"
	CodeBorrowConflictPoke   Code = "CE3002"
	CodeNestedPoke           Code = "CW3003"
	CodeRebindWhileBorrowed  Code = "CE3004"
	CodeDestroyWhileBorrowed Code = "CE3005"
	CodeUseAfterMove         Code = "CE3006"
	CodeUseAfterDestroy      Code = "CE3007"

	// Driver / codegen
	CodeToolNotFound   Code = "CE9001"
	CodeSubprocessFail Code = "CE9002"
)
