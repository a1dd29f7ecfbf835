package storage

// schemaDDL mirrors the data model. Identifier columns are UUID v4 generated
// in Go; NUMERIC for money and temperatures; JSONB for structured columns.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS trades (
	id UUID PRIMARY KEY,
	city TEXT NOT NULL,
	target_date DATE NOT NULL,
	platform TEXT NOT NULL,
	market_id TEXT NOT NULL,
	range_name TEXT NOT NULL,
	range_min NUMERIC,
	range_max NUMERIC,
	range_type TEXT NOT NULL,
	unit TEXT NOT NULL,
	side TEXT NOT NULL,

	entry_ask NUMERIC NOT NULL,
	entry_bid NUMERIC NOT NULL DEFAULT 0,
	entry_spread NUMERIC NOT NULL DEFAULT 0,
	entry_volume NUMERIC NOT NULL DEFAULT 0,
	forecast_temp NUMERIC,
	forecast_confidence TEXT,
	std_dev NUMERIC,
	ensemble JSONB,
	edge NUMERIC,
	kelly NUMERIC,
	reason TEXT NOT NULL,
	cal_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
	lead_time_bucket TEXT,
	price_bucket TEXT,

	shares INTEGER NOT NULL,
	cost NUMERIC NOT NULL,
	fees NUMERIC NOT NULL DEFAULT 0,

	status TEXT NOT NULL DEFAULT 'open',

	won BOOLEAN,
	actual_temp NUMERIC,
	pnl NUMERIC,
	resolved_at TIMESTAMPTZ,
	resolution_station TEXT,

	exit_reason TEXT,
	exit_time TIMESTAMPTZ,
	exit_price NUMERIC,

	observation_high NUMERIC,
	wu_high NUMERIC,

	max_price_seen NUMERIC,
	min_probability_seen NUMERIC,
	evaluations JSONB,

	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_trades_status_platform ON trades(status, platform);
CREATE INDEX IF NOT EXISTS idx_trades_platform_date ON trades(platform, target_date);
CREATE INDEX IF NOT EXISTS idx_trades_dedup ON trades(city, target_date, range_name, side);

CREATE TABLE IF NOT EXISTS opportunities (
	id UUID PRIMARY KEY,
	city TEXT NOT NULL,
	target_date DATE NOT NULL,
	platform TEXT NOT NULL,
	market_id TEXT NOT NULL,
	range_name TEXT NOT NULL,
	range_min NUMERIC,
	range_max NUMERIC,
	range_type TEXT NOT NULL,
	side TEXT NOT NULL,

	best_bid NUMERIC NOT NULL DEFAULT 0,
	best_ask NUMERIC NOT NULL DEFAULT 0,
	spread NUMERIC NOT NULL DEFAULT 0,
	bid_depth NUMERIC NOT NULL DEFAULT 0,
	ask_depth NUMERIC NOT NULL DEFAULT 0,
	volume NUMERIC NOT NULL DEFAULT 0,

	forecast_temp NUMERIC,
	ensemble_std_dev NUMERIC,
	source_spread NUMERIC,
	market_implied_temp NUMERIC,
	market_divergence NUMERIC,
	near_edge_dist NUMERIC,
	far_edge_dist NUMERIC,

	raw_probability NUMERIC NOT NULL DEFAULT 0,
	corrected_probability NUMERIC NOT NULL DEFAULT 0,
	edge NUMERIC NOT NULL DEFAULT 0,
	kelly_fraction NUMERIC NOT NULL DEFAULT 0,
	prob_bucket TEXT NOT NULL DEFAULT '',
	lead_time_bucket TEXT NOT NULL DEFAULT '',
	price_bucket TEXT NOT NULL DEFAULT '',
	hours_to_resolution NUMERIC,

	action TEXT NOT NULL,
	filter_reason TEXT,

	actual_temp DOUBLE PRECISION,
	would_win BOOLEAN,

	model_valid BOOLEAN,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_opps_city_date ON opportunities(city, target_date);
CREATE INDEX IF NOT EXISTS idx_opps_created ON opportunities(created_at);
CREATE INDEX IF NOT EXISTS idx_opps_market ON opportunities(market_id);

CREATE TABLE IF NOT EXISTS observations (
	id UUID PRIMARY KEY,
	city TEXT NOT NULL,
	target_date DATE NOT NULL,
	station_id TEXT NOT NULL,
	temp_f NUMERIC NOT NULL,
	running_high NUMERIC NOT NULL,
	station_high NUMERIC,
	wu_high NUMERIC,
	observation_count INTEGER NOT NULL DEFAULT 1,
	observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_obs_city_date ON observations(city, target_date, observed_at);

CREATE TABLE IF NOT EXISTS pws_samples (
	id UUID PRIMARY KEY,
	city TEXT NOT NULL,
	target_date DATE NOT NULL,
	station_id TEXT NOT NULL,
	temp_f NUMERIC NOT NULL,
	corrected_temp NUMERIC NOT NULL,
	station_bias NUMERIC NOT NULL DEFAULT 0,
	observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pws_city_date ON pws_samples(city, target_date, observed_at);

CREATE TABLE IF NOT EXISTS market_resolutions (
	market_id TEXT PRIMARY KEY,
	city TEXT NOT NULL,
	target_date DATE NOT NULL,
	platform TEXT NOT NULL,
	actual_temp NUMERIC NOT NULL,
	winning_range TEXT,
	resolution_station TEXT NOT NULL,
	resolved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS model_calibration (
	range_type TEXT NOT NULL,
	prob_bucket TEXT NOT NULL,
	n INTEGER NOT NULL,
	avg_model_prob NUMERIC NOT NULL,
	actual_win_rate NUMERIC NOT NULL,
	correction_ratio NUMERIC NOT NULL,
	PRIMARY KEY (range_type, prob_bucket)
);

CREATE TABLE IF NOT EXISTS market_calibration (
	platform TEXT NOT NULL,
	range_type TEXT NOT NULL,
	lead_time_bucket TEXT NOT NULL,
	price_bucket TEXT NOT NULL,
	n INTEGER NOT NULL,
	empirical_win_rate NUMERIC NOT NULL,
	market_avg_ask NUMERIC NOT NULL,
	true_edge NUMERIC NOT NULL,
	PRIMARY KEY (platform, range_type, lead_time_bucket, price_bucket)
);

CREATE TABLE IF NOT EXISTS city_error_distribution (
	city TEXT PRIMARY KEY,
	n INTEGER NOT NULL,
	mean_error NUMERIC NOT NULL,
	std_dev NUMERIC NOT NULL,
	p5 NUMERIC NOT NULL,
	p25 NUMERIC NOT NULL,
	p50 NUMERIC NOT NULL,
	p75 NUMERIC NOT NULL,
	p95 NUMERIC NOT NULL
);

CREATE TABLE IF NOT EXISTS forecast_accuracy (
	id UUID PRIMARY KEY,
	city TEXT NOT NULL,
	target_date DATE NOT NULL,
	source TEXT NOT NULL,
	forecast_f NUMERIC NOT NULL,
	actual_f NUMERIC NOT NULL,
	signed_error NUMERIC NOT NULL,
	abs_error NUMERIC NOT NULL,
	model_valid BOOLEAN,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_accuracy_city_source ON forecast_accuracy(city, source, target_date);

CREATE TABLE IF NOT EXISTS forecast_snapshots (
	id UUID PRIMARY KEY,
	city TEXT NOT NULL,
	target_date DATE NOT NULL,
	source TEXT NOT NULL,
	high_f NUMERIC NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_city_date ON forecast_snapshots(city, target_date, source);

CREATE TABLE IF NOT EXISTS mv_refresh_log (
	id UUID PRIMARY KEY,
	view_name TEXT NOT NULL,
	row_count BIGINT NOT NULL,
	duration_ms BIGINT NOT NULL,
	refreshed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// viewDDL defines the materialized views the resolver refreshes. Unique
// indexes are required for REFRESH ... CONCURRENTLY.
const viewDDL = `
CREATE MATERIALIZED VIEW IF NOT EXISTS market_outcomes_mv AS
SELECT DISTINCT ON (o.market_id)
	o.market_id,
	o.city,
	o.target_date,
	o.platform,
	o.range_name,
	o.range_type,
	r.actual_temp,
	r.winning_range,
	r.resolved_at
FROM opportunities o
JOIN market_resolutions r ON r.market_id = o.market_id
ORDER BY o.market_id, o.created_at DESC;

CREATE UNIQUE INDEX IF NOT EXISTS idx_market_outcomes_mv ON market_outcomes_mv(market_id);

CREATE MATERIALIZED VIEW IF NOT EXISTS features_ml_mv AS
SELECT DISTINCT ON (o.market_id)
	o.id,
	o.market_id,
	o.city,
	o.target_date,
	o.platform,
	o.range_name,
	o.range_type,
	o.best_ask,
	o.spread,
	o.volume,
	o.forecast_temp,
	o.ensemble_std_dev,
	o.source_spread,
	o.market_divergence,
	o.near_edge_dist,
	o.far_edge_dist,
	o.raw_probability,
	o.corrected_probability,
	o.edge,
	o.hours_to_resolution,
	o.would_win
FROM opportunities o
JOIN market_resolutions r ON r.market_id = o.market_id
WHERE o.side = 'YES' AND o.would_win IS NOT NULL
ORDER BY o.market_id, o.created_at DESC;

CREATE UNIQUE INDEX IF NOT EXISTS idx_features_ml_mv ON features_ml_mv(market_id);

CREATE MATERIALIZED VIEW IF NOT EXISTS performance_mv AS
SELECT
	platform,
	city,
	side,
	reason,
	range_type,
	COUNT(*) AS trades,
	COUNT(*) FILTER (WHERE won) AS wins,
	COALESCE(SUM(pnl), 0) AS total_pnl,
	COALESCE(SUM(fees), 0) AS total_fees,
	COALESCE(SUM(cost), 0) AS total_cost
FROM trades
WHERE status IN ('resolved', 'exited')
GROUP BY platform, city, side, reason, range_type;

CREATE UNIQUE INDEX IF NOT EXISTS idx_performance_mv
	ON performance_mv(platform, city, side, reason, range_type);
`
