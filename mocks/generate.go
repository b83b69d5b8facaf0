package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/candlelab/replay/internal/replay/signal Provider
//go:generate mockgen -destination=./mock_sink.go -package=mocks github.com/candlelab/replay/internal/replay/sink Sink
//go:generate mockgen -destination=./mock_datasource.go -package=mocks github.com/candlelab/replay/internal/replay/datasource CandleSource
