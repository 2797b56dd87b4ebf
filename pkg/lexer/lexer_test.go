package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tokenTypes(t *testing.T, src string) []TokenType {
	t.Helper()
	s := New(src)
	var types []TokenType
	for {
		tok := s.Next()
		types = append(types, tok.Type)
		if tok.Type == TokenEOF {
			break
		}
	}
	return types
}

func TestScanKeywordsAndIdentifier(t *testing.T) {
	types := tokenTypes(t, "var x = foo;")
	require.Equal(t, []TokenType{
		TokenVar, TokenIdentifier, TokenAssign, TokenIdentifier, TokenSemicolon, TokenEOF,
	}, types)
}

func TestScanStringLiteralBothQuoteStyles(t *testing.T) {
	s := New(`"double" 'single'`)
	first := s.Next()
	require.Equal(t, TokenString, first.Type)
	require.Equal(t, "double", first.Lexeme)

	second := s.Next()
	require.Equal(t, TokenString, second.Type)
	require.Equal(t, "single", second.Lexeme)
}

func TestScanNumberLiteral(t *testing.T) {
	s := New("3.14")
	tok := s.Next()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "3.14", tok.Lexeme)
}

func TestScanNegativeNumberAfterOperator(t *testing.T) {
	// '-' immediately after an assignment operator and before a digit folds
	// into a negative number literal rather than a standalone '-' token.
	s := New("x = -5;")
	require.Equal(t, TokenIdentifier, s.Next().Type)
	require.Equal(t, TokenAssign, s.Next().Type)
	numTok := s.Next()
	require.Equal(t, TokenNumber, numTok.Type)
	require.Equal(t, "-5", numTok.Lexeme)
}

func TestScanMinusAsBinaryOperatorAfterIdentifier(t *testing.T) {
	s := New("x - 5;")
	require.Equal(t, TokenIdentifier, s.Next().Type)
	minusTok := s.Next()
	require.Equal(t, TokenMinus, minusTok.Type)
}

func TestSkipsLineBlockAndHashComments(t *testing.T) {
	types := tokenTypes(t, "// line comment\n/* block */\n# hash comment\nvar x;")
	require.Equal(t, []TokenType{TokenVar, TokenIdentifier, TokenSemicolon, TokenEOF}, types)
}

func TestCompoundAssignmentAndIncrementTokens(t *testing.T) {
	types := tokenTypes(t, "x += 1; y++;")
	require.Equal(t, []TokenType{
		TokenIdentifier, TokenPlusEqual, TokenNumber, TokenSemicolon,
		TokenIdentifier, TokenPlusPlus, TokenSemicolon, TokenEOF,
	}, types)
}

func TestLineNumbersTrackedAcrossNewlines(t *testing.T) {
	s := New("var x;\nvar y;")
	s.Next() // var
	s.Next() // x
	s.Next() // ;
	tok := s.Next()
	require.Equal(t, TokenVar, tok.Type)
	require.Equal(t, 2, tok.Line)
}
