package bgv

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/hetile/core/rlwe"
)

func GetBenchName(tc *TestContext, opname string) string {
	return fmt.Sprintf("%s/%s", opname, tc)
}

func BenchmarkBGV(b *testing.B) {

	literals := []rlwe.ContextLiteral{
		{Scheme: rlwe.BGV, M: 1 << 12, P: 65537, LogQ: []int{50, 40, 40, 40}, LogSpecial: []int{60}},
	}

	if *flagParamString != "" {
		var lit rlwe.ContextLiteral
		if err := json.Unmarshal([]byte(*flagParamString), &lit); err != nil {
			b.Fatal(err)
		}
		literals = []rlwe.ContextLiteral{lit}
	}

	for _, lit := range literals {

		tc, err := NewTestContext(lit, 1, 3)
		require.NoError(b, err)

		for _, testSet := range []func(tc *TestContext, b *testing.B){
			benchEncryptedArray,
			benchEvaluator,
		} {
			testSet(tc, b)
		}
	}
}

func benchEncryptedArray(tc *TestContext, b *testing.B) {

	values := make([]uint64, tc.EA.Slots())
	for i := range values {
		values[i] = uint64(i)
	}

	pt := rlwe.NewPlaintext(tc.Ctx, tc.Ctx.MaxLevel())

	b.Run(GetBenchName(tc, "EncryptedArray/Encode"), func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if err := tc.EA.Encode(values, pt); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run(GetBenchName(tc, "EncryptedArray/Decode"), func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := tc.EA.Decode(pt); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func benchEvaluator(tc *TestContext, b *testing.B) {

	lvl := tc.Ctx.MaxLevel()

	pt, err := tc.EA.EncodeNew([]uint64{1, 2, 3}, lvl)
	require.NoError(b, err)

	ct0, err := tc.Enc.EncryptNew(pt)
	require.NoError(b, err)
	ct1, err := tc.Enc.EncryptNew(pt)
	require.NoError(b, err)

	b.Run(GetBenchName(tc, "Evaluator/MulRelinRescale"), func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := tc.Evl.MulRelinRescaleNew(ct0, ct1); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run(GetBenchName(tc, "Evaluator/RotateRows"), func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := tc.Evl.RotateRowsNew(ct0, 1); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run(GetBenchName(tc, "Evaluator/Rotate"), func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := tc.Evl.RotateNew(ct0, 3); err != nil {
				b.Fatal(err)
			}
		}
	})
}
