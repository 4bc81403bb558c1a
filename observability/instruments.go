package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const ledgerMeterName = "cdfichain/ledger"

// LedgerInstruments mirrors the purchase, refund, withdrawal and vesting
// counters onto the OpenTelemetry meter so they reach the OTLP exporter
// alongside the Prometheus registry.
type LedgerInstruments struct {
	purchases      metric.Int64Counter
	refundFailures metric.Int64Counter
	withdrawals    metric.Int64Counter
	vestingClaims  metric.Int64Counter
}

// NewLedgerInstruments creates the counters on provider. A nil provider uses
// the global one, which forwards to whatever telemetry.Init installs later.
func NewLedgerInstruments(provider metric.MeterProvider) *LedgerInstruments {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(ledgerMeterName)
	return &LedgerInstruments{
		purchases:      int64Counter(meter, "cdfi.subscription.purchases", "Subscription purchases by rail and outcome."),
		refundFailures: int64Counter(meter, "cdfi.subscription.refund_failures", "Native refunds that could not be delivered."),
		withdrawals:    int64Counter(meter, "cdfi.treasury.withdrawals", "Treasury withdrawals by asset."),
		vestingClaims:  int64Counter(meter, "cdfi.vesting.claims", "Vesting claims by schedule."),
	}
}

// int64Counter falls back to a no-op counter when the meter rejects the
// instrument.
func int64Counter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter(ledgerMeterName).Int64Counter(name)
	}
	return counter
}

func (i *LedgerInstruments) RecordPurchase(ctx context.Context, asset string, reverted bool) {
	if i == nil {
		return
	}
	outcome := "success"
	if reverted {
		outcome = "reverted"
	}
	i.purchases.Add(ctx, 1, metric.WithAttributes(
		attribute.String("asset", normalizeLabel(asset)),
		attribute.String("outcome", outcome),
	))
}

func (i *LedgerInstruments) RecordRefundFailure(ctx context.Context) {
	if i == nil {
		return
	}
	i.refundFailures.Add(ctx, 1)
}

func (i *LedgerInstruments) RecordWithdrawal(ctx context.Context, asset string) {
	if i == nil {
		return
	}
	i.withdrawals.Add(ctx, 1, metric.WithAttributes(attribute.String("asset", normalizeLabel(asset))))
}

func (i *LedgerInstruments) RecordVestingClaim(ctx context.Context, schedule string) {
	if i == nil {
		return
	}
	i.vestingClaims.Add(ctx, 1, metric.WithAttributes(attribute.String("schedule", normalizeLabel(schedule))))
}
