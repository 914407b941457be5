// Package scheduler fires the daily auto dispatch.
//
// The trigger time comes from the stored settings (auto_send_time) and the
// timezone from config. Sync re-registers the cron entry whenever settings are
// saved; Apply restarts cron when the timezone changes.
package scheduler
