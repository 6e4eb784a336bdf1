package dataset

// Event table columns.
const (
	ColBipID          = "bip_id"
	ColGameDate       = "game_date"
	ColHomeTeam       = "home_team"
	ColAwayTeam       = "away_team"
	ColBatterTeam     = "batter_team"
	ColBatterName     = "batter_name"
	ColPitcherName    = "pitcher_name"
	ColBatterID       = "batter_id"
	ColPitcherID      = "pitcher_id"
	ColIsBatterLefty  = "is_batter_lefty"
	ColIsPitcherLefty = "is_pitcher_lefty"
	ColBBType         = "bb_type"
	ColBearing        = "bearing"
	ColPitchName      = "pitch_name"
	ColPark           = "park"
	ColInning         = "inning"
	ColOutsWhenUp     = "outs_when_up"
	ColBalls          = "balls"
	ColStrikes        = "strikes"
	ColPlateX         = "plate_x"
	ColPlateZ         = "plate_z"
	ColPitchMPH       = "pitch_mph"
	ColLaunchSpeed    = "launch_speed"
	ColLaunchAngle    = "launch_angle"
	ColIsHomeRun      = "is_home_run"
)

// Park dimensions table columns.
const (
	ColParkName = "NAME"
	ColCover    = "Cover"
	ColLFDim    = "LF_Dim"
	ColCFDim    = "CF_Dim"
	ColRFDim    = "RF_Dim"
	ColLFW      = "LF_W"
	ColCFW      = "CF_W"
	ColRFW      = "RF_W"
)

// eventColumns lists every column the event table must carry.
var eventColumns = []string{
	ColBipID, ColGameDate, ColHomeTeam, ColAwayTeam, ColBatterTeam,
	ColBatterName, ColPitcherName, ColBatterID, ColPitcherID,
	ColIsBatterLefty, ColIsPitcherLefty, ColBBType, ColBearing, ColPitchName,
	ColPark, ColInning, ColOutsWhenUp, ColBalls, ColStrikes,
	ColPlateX, ColPlateZ, ColPitchMPH, ColLaunchSpeed, ColLaunchAngle,
	ColIsHomeRun,
}

// parkColumns lists every column the park dimensions table must carry.
var parkColumns = []string{
	ColPark, ColParkName, ColCover,
	ColLFDim, ColCFDim, ColRFDim, ColLFW, ColCFW, ColRFW,
}
