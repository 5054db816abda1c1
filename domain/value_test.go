package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueJoinBottomIsIdentity(t *testing.T) {
	v := ValueOf(7)
	require.Equal(t, v, v.Join(ValueBottom))
	require.Equal(t, v, ValueBottom.Join(v))
}

func TestValueJoinEqualConstantsStayExact(t *testing.T) {
	require.Equal(t, ValueOf(3), ValueOf(3).Join(ValueOf(3)))
}

func TestValueJoinDifferingConstantsFormInterval(t *testing.T) {
	require.Equal(t, IntervalOf(i64(3), i64(4)), ValueOf(3).Join(ValueOf(4)))
	require.Equal(t, IntervalOf(i64(3), i64(4)), ValueOf(4).Join(ValueOf(3)))
}

func TestValueJoinIntervalAbsorbsContainedConstant(t *testing.T) {
	iv := ValueOf(3).Join(ValueOf(5))
	require.Equal(t, iv, iv.Join(ValueOf(4)))
}

func TestValueJoinIntervalWidensToTopOnSecondOutlier(t *testing.T) {
	iv := ValueOf(3).Join(ValueOf(4))
	require.Equal(t, ValueTop, iv.Join(ValueOf(9)))
}

func TestValueJoinDifferingParametersGoTop(t *testing.T) {
	require.Equal(t, ValueTop, ParameterOf(0).Join(ParameterOf(1)))
}

func TestValueEqualDistinguishesBottomFromZero(t *testing.T) {
	require.False(t, ValueBottom.Equal(ValueOf(0)))
}

func TestValueMeetOfOverlappingIntervalsNarrows(t *testing.T) {
	a := IntervalOf(i64(0), i64(10))
	b := IntervalOf(i64(5), i64(20))
	require.Equal(t, IntervalOf(i64(5), i64(10)), a.Meet(b))
}

func TestValueMeetOfDisjointIntervalsIsBottom(t *testing.T) {
	a := IntervalOf(i64(0), i64(1))
	b := IntervalOf(i64(5), i64(6))
	require.Equal(t, ValueBottom, a.Meet(b))
}

func TestValueSubsumesExactWithinInterval(t *testing.T) {
	require.True(t, IntervalOf(i64(0), i64(10)).Subsumes(ValueOf(4)))
	require.False(t, IntervalOf(i64(0), i64(10)).Subsumes(ValueOf(11)))
}

func TestValueAddOffsetShiftsExactAndInterval(t *testing.T) {
	require.Equal(t, ValueOf(12), ValueOf(10).AddOffset(2))
	require.Equal(t, IntervalOf(i64(2), i64(12)), IntervalOf(i64(0), i64(10)).AddOffset(2))
}

func TestValueAdaptSubstitutesKnownParameterOnly(t *testing.T) {
	require.Equal(t, ValueOf(7), ParameterOf(0).Adapt(map[int]Value{0: ValueOf(7)}))
	require.Equal(t, ValueTop, ParameterOf(1).Adapt(map[int]Value{0: ValueOf(7)}))
	require.Equal(t, ValueOf(7), ValueOf(7).Adapt(map[int]Value{0: ValueOf(3)}))
}
