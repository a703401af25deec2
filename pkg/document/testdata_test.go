package document

const samplePage = `<!DOCTYPE html>
<html><body>
<div id="study">
  <h2 id="program-requirements">Program Requirements</h2>
  <p>This program requires completion of 96 units, of which:</p>
  <p style="margin-left: 40px;">48 units from completion of the following compulsory courses:<br>
     <a href="/2019/course/COMP6250">COMP6250</a><br>COMP6442</p>
  <p>24 units from completion of the Artificial&nbsp;Intelligence specialisation</p>
  <div class="back-to-top"><a href="#top">Back to top</a></div>
  <h2 id="specialisations">Specialisations</h2>
  <ul>
    <li><a href="/2019/specialisation/ARIN-SPEC">Artificial Intelligence</a></li>
    <li><a href="/2019/specialisation/DASC-SPEC">Data Science</a></li>
  </ul>
  <h2 id="learning-outcomes">Learning Outcomes</h2>
  <p>Be good at computing.</p>
</div>
</body></html>`
