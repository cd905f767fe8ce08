package bulletml

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ExprSuite struct {
	suite.Suite
}

func TestExprSuite(t *testing.T) {
	suite.Run(t, new(ExprSuite))
}

func (s *ExprSuite) TestConstantFolding() {
	e, err := compileExpr("1 + 2 * 3", nil)
	s.Require().NoError(err)
	v, err := e.Eval(nil, 0, nil)
	s.Require().NoError(err)
	s.Equal(7.0, v)
}

func (s *ExprSuite) TestParamLookup() {
	e, err := compileExpr("$1 + $2", nil)
	s.Require().NoError(err)
	v, err := e.Eval(Params{"$1": 10, "$2": 5}, 0, nil)
	s.Require().NoError(err)
	s.Equal(15.0, v)
}

func (s *ExprSuite) TestMissingParamIsError() {
	e, err := compileExpr("$1", nil)
	s.Require().NoError(err)
	_, err = e.Eval(Params{}, 0, nil)
	s.Error(err)
}

func (s *ExprSuite) TestRank() {
	e, err := compileExpr("$rank * 2", nil)
	s.Require().NoError(err)
	v, err := e.Eval(nil, 0.5, nil)
	s.Require().NoError(err)
	s.Equal(1.0, v)
}

func (s *ExprSuite) TestRand() {
	e, err := compileExpr("$rand", nil)
	s.Require().NoError(err)
	rng := rand.New(rand.NewSource(1))
	v, err := e.Eval(nil, 0, rng)
	s.Require().NoError(err)
	s.GreaterOrEqual(v, 0.0)
	s.Less(v, 1.0)
}

func (s *ExprSuite) TestLoopIndex() {
	e, err := compileExpr("$loop.index", nil)
	s.Require().NoError(err)
	v, err := e.Eval(Params{"$loop.index": 3}, 0, nil)
	s.Require().NoError(err)
	s.Equal(3.0, v)

	_, err = e.Eval(Params{}, 0, nil)
	s.Error(err)
}

func (s *ExprSuite) TestSinCosDegrees() {
	e, err := compileExpr("sin(90) + cos(0)", nil)
	s.Require().NoError(err)
	v, err := e.Eval(nil, 0, nil)
	s.Require().NoError(err)
	s.InDelta(2.0, v, 1e-9)
}

func (s *ExprSuite) TestIntExprRoundsHalfAwayFromZero() {
	e, err := compileIntExpr("2.5", nil)
	s.Require().NoError(err)
	v, err := e.Eval(nil, 0, nil)
	s.Require().NoError(err)
	s.Equal(3.0, v)

	e, err = compileIntExpr("-2.5", nil)
	s.Require().NoError(err)
	v, err = e.Eval(nil, 0, nil)
	s.Require().NoError(err)
	s.Equal(-3.0, v)
}

func (s *ExprSuite) TestUnknownIdentifierIsCompileError() {
	_, err := compileExpr("foo", nil)
	s.Error(err)
}

func (s *ExprSuite) TestUnsupportedFunctionIsError() {
	_, err := compileExpr("tan(1)", nil)
	s.Error(err)
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	require.Equal(t, 1.0, roundHalfAwayFromZero(0.5))
	require.Equal(t, -1.0, roundHalfAwayFromZero(-0.5))
	require.Equal(t, 0.0, roundHalfAwayFromZero(0.4))
}

func TestExprErrorMentionsExprText(t *testing.T) {
	_, err := compileExpr("1 +", nil)
	require.Error(t, err)
	var exprErr *ExprError
	require.ErrorAs(t, err, &exprErr)
	require.Contains(t, exprErr.Error(), "1 +")
}

func TestDefaultRandIsSeeded(t *testing.T) {
	require.NotNil(t, defaultRand)
	v := defaultRand.Float64()
	require.GreaterOrEqual(t, v, 0.0)
	require.Less(t, v, 1.0)
}

func TestSinDegMatchesMath(t *testing.T) {
	require.InDelta(t, math.Sin(math.Pi/2), sinDeg(90), 1e-9)
}
