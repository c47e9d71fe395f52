package assetsink

import "recorder-scraper/lib/telemetry"

var tracer = telemetry.Tracer("recorder.lib.assetsink")
