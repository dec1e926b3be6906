package orders

import (
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
)

const (
	website    = "المتجر الإلكتروني"
	dashboard  = "لوحة التحكم"
	creditCard = "بطاقة إئتمانية"
)

func find(t *testing.T, rows []entity.LabelValue, label string) decimal.Decimal {
	t.Helper()
	for _, r := range rows {
		if r.Label == label {
			return r.Value
		}
	}
	t.Fatalf("row %q not found", label)
	return decimal.Zero
}

func TestDedupPrefersPaymentMethod(t *testing.T) {
	r := New(Config{})
	res := r.Reconcile([]entity.OrderLine{
		{OrderId: "1001", SKU: "S1", Source: website, PaymentMethod: "", CustomerName: "Sara"},
		{OrderId: "1001", SKU: "S2", Source: website, PaymentMethod: creditCard, CustomerName: "Sara"},
	})

	require.Len(t, res.Orders, 1)
	assert.Equal(t, creditCard, res.Orders[0].PaymentMethod)
	assert.Equal(t, entity.PaymentTap, res.Orders[0].PaymentBucket)
	assert.Equal(t, entity.ChannelWebsite, res.Orders[0].Channel)

	tbl := SourceBreakdown(res)
	assert.Equal(t, "1", find(t, tbl, "Total orders").String())
	assert.Equal(t, "100", find(t, tbl, "Website Tap % of website").String())
	assert.Equal(t, "100", find(t, tbl, "Website Tap % of total").String())
}

func TestFeeLinesDropped(t *testing.T) {
	r := New(Config{})
	res := r.Reconcile([]entity.OrderLine{
		{OrderId: "1", ProductName: "رسوم الدفع عند الاستلام", CustomerName: ""},
		{OrderId: "1", ProductName: "رسوم الدفع عند الاستلام", CustomerName: "Ali"},
		{OrderId: "1", ProductName: "Pillow", CustomerName: ""},
	})
	assert.Len(t, res.Lines, 2)
}

func TestCancelledAndCustomerService(t *testing.T) {
	r := New(Config{})
	res := r.Reconcile([]entity.OrderLine{
		{OrderId: "1", Status: "ملغي", Source: website, CustomerName: "a"},
		{OrderId: "2", Status: "مسترجع", Source: website, CustomerName: "b"},
		{OrderId: "3", Status: "تم التنفيذ", Source: dashboard, CustomerNote: "دفع عن طريق تابي", CustomerName: "c"},
		{OrderId: "4", Status: "تم التنفيذ", Source: dashboard, CustomerNote: "رابط تاب", CustomerName: "d"},
		{OrderId: "5", Status: "تم التنفيذ", Source: dashboard, CustomerNote: "", CustomerName: "e"},
		{OrderId: "6", Status: "تم التنفيذ", Source: website, PaymentMethod: "تحويل بنكي", CustomerName: "f"},
	})

	assert.True(t, res.CancelledIds["1"])
	assert.True(t, res.CancelledIds["2"])
	assert.Len(t, res.Filtered, 4)
	assert.Equal(t, 3, UniqueIds(res.Unfiltered))

	buckets := map[string]string{}
	for _, o := range res.Orders {
		buckets[o.OrderId] = o.PaymentBucket
	}
	assert.Equal(t, map[string]string{
		"3": entity.PaymentTabby,
		"4": entity.PaymentTap,
		"5": entity.PaymentTap,
		"6": entity.PaymentTap,
	}, buckets)

	tbl := SourceBreakdown(res)
	assert.Equal(t, "3", find(t, tbl, "Customer service orders").String())
	assert.Equal(t, "75", find(t, tbl, "Customer service orders % of total").String())
	assert.Equal(t, "66.67", find(t, tbl, "Customer service Tap % of customer service").String())
	assert.Equal(t, "25", find(t, tbl, "Customer service Tabby % of total").String())
}

func TestDedupPermutationInvariant(t *testing.T) {
	lines := []entity.OrderLine{
		{OrderId: "1", PaymentMethod: ""},
		{OrderId: "1", PaymentMethod: creditCard},
		{OrderId: "2", PaymentMethod: "تابي"},
		{OrderId: "3", PaymentMethod: ""},
		{OrderId: "3", PaymentMethod: ""},
		{OrderId: "4", PaymentMethod: "تحويل بنكي"},
		{OrderId: "4", PaymentMethod: ""},
	}
	ids := func(os []entity.Order) []string {
		out := make([]string, 0, len(os))
		for _, o := range os {
			out = append(out, o.OrderId+":"+o.PaymentBucket)
		}
		sort.Strings(out)
		return out
	}

	r := New(Config{})
	want := ids(r.Reconcile(lines).Orders)
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		p := append([]entity.OrderLine(nil), lines...)
		rnd.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
		assert.Equal(t, want, ids(r.Reconcile(p).Orders))
	}
}

func TestGeneralAnalysisZeroSafe(t *testing.T) {
	r := New(Config{})
	tbl := GeneralAnalysis(r.Reconcile(nil), GeneralInputs{})
	for _, row := range tbl {
		assert.True(t, row.Value.IsZero(), row.Label)
	}
}

func TestGeneralAnalysis(t *testing.T) {
	r := New(Config{})
	res := r.Reconcile([]entity.OrderLine{
		{OrderId: "1", Source: website, Total: decimal.NewFromInt(300), CustomerName: "a"},
		{OrderId: "2", Source: website, Total: decimal.NewFromInt(100), CustomerName: "b"},
		{OrderId: "3", Source: website, Status: "ملغي", Total: decimal.NewFromInt(50), CustomerName: "c"},
	})
	tbl := GeneralAnalysis(res, GeneralInputs{
		AdSpend:         decimal.NewFromInt(100),
		InfluencerSpend: decimal.NewFromInt(100),
		ActiveUsers:     300,
	})

	assert.Equal(t, "400", find(t, tbl, "Sales").String())
	assert.Equal(t, "4", find(t, tbl, "ROI without influencer").String())
	assert.Equal(t, "2", find(t, tbl, "ROI with influencer").String())
	assert.Equal(t, "50", find(t, tbl, "CPA").String())
	assert.Equal(t, "1", find(t, tbl, "Conversion rate %").String())
}

func TestParse(t *testing.T) {
	csv := "رقم الطلب,SKU,اسم المنتج,الكمية,حالة الطلب,مصدر الطلب,طريقة الدفع,اسم العميل,إجمالي الطلب\n" +
		"1001,S1,Pillow,2,تم التنفيذ," + website + "," + creditCard + ",Sara,\"1,250.00\"\n" +
		"1001,S2,Cover,1,تم التنفيذ," + website + ",,Sara,\"1,250.00\"\n"

	lines, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 2, lines[1].LineNo)
	assert.Equal(t, "1250", lines[0].Total.String())

	_, err = Parse(strings.NewReader("رقم الطلب,SKU\n1,S1\n"))
	require.Error(t, err)
	assert.True(t, gerr.IsValidation(err))
}
