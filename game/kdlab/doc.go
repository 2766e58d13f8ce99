// Package kdlab implements the semicolon-separated text protocol spoken by
// the legacy racing client.
//
// A packet is a flat list of fields:
//
//	KDLAB;ver;type;gmid;lang;owner_pid;sender_pid;password;world;track;rnd;
//	W|A;laps;seeds;duration;move_cnt;players_cnt;steps_cnt;Y|N;
//	url.post;url.post_port;url.post_path;url.sreturn;
//	[players];[step blocks];BITRIX
//
// Encode always writes at most one step block. Decode accepts any number of
// them and ignores the URL block and anything after the last step block.
package kdlab
