package report

const tpl = `
<!DOCTYPE html>
<html>
 <head>
  <meta charset="UTF-8">
  <title>Procedure Diff Report</title>
 </head>
 <body>
  <h1>Procedure Diff Report</h1>
  <h2>Task Information:</h2>
  {{ range .TaskInfoItems }}
  <b>{{ index . 0 }} : </b>{{ index . 1 }}<br>
  {{ end }}
  <h2>Report Summary:</h2>
  <table>
   <tr>
    <th>Category</th>
    <th>Case Count</th>
   </tr>
   <tr>
    <td>Total</td>
    <td>{{ .Summary.Total }}</td>
   </tr>
   <tr>
    <td>Passed</td>
    <td>{{ .Summary.Passed }}</td>
   </tr>
   <tr>
    <td>Failed</td>
    <td>{{ .Summary.Failed }}</td>
   </tr>
   <tr>
    <td>With Errors</td>
    <td>{{ .Summary.Errors }}</td>
   </tr>
  </table>
  <h2>Execution Timing:</h2>
  <table>
   <tr>
    <th>Side</th>
    <th>Avg</th>
    <th>Min</th>
    <th>Max</th>
   </tr>
   <tr>
    <td>Baseline</td>
    <td>{{ .Timing.BaselineAvg }}</td>
    <td>{{ .Timing.BaselineMin }}</td>
    <td>{{ .Timing.BaselineMax }}</td>
   </tr>
   <tr>
    <td>Candidate</td>
    <td>{{ .Timing.CandidateAvg }}</td>
    <td>{{ .Timing.CandidateMin }}</td>
    <td>{{ .Timing.CandidateMax }}</td>
   </tr>
  </table>
  {{ if .Timing.Improvement }}
  <b>Improvement : </b>{{ .Timing.Improvement }}<br>
  {{ end }}
  <h2>Details:</h2>
  {{ range .Details }}
  <h3>{{ .Header }}</h3>
  {{ range .Labels }}
  <b>{{ index . 0 }} : </b>{{ index . 1 }}<br>
  {{ end }}
  {{ if .Lines }}
  <pre>{{ range .Lines }}{{ . }}
{{ end }}</pre>
  {{ end }}
  {{ end }}
 </body>
</html>`
